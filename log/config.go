package log

import (
	"github.com/kochabx/portal/log/writer"
)

// Config describes where and how the service logs.
type Config struct {
	Level  string      `json:"level" mapstructure:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string      `json:"format" mapstructure:"format" default:"console" validate:"oneof=console json"`
	File   *FileConfig `json:"file" mapstructure:"file"`
}

// FileConfig selects file output and its rotation.
type FileConfig struct {
	Filepath   string            `json:"filepath" mapstructure:"filepath" default:"log"`
	Filename   string            `json:"filename" mapstructure:"filename" default:"portal"`
	FileExt    string            `json:"file_ext" mapstructure:"file_ext" default:"log"`
	RotateMode writer.RotateMode `json:"rotate_mode" mapstructure:"rotate_mode"`
	// hours, only for time rotation
	MaxAgeHours  int `json:"max_age_hours" mapstructure:"max_age_hours" default:"168"`
	RotationTime int `json:"rotation_time" mapstructure:"rotation_time" default:"24"`
	// size rotation
	MaxSize    int  `json:"max_size" mapstructure:"max_size" default:"100"`
	MaxBackups int  `json:"max_backups" mapstructure:"max_backups" default:"5"`
	MaxAgeDays int  `json:"max_age_days" mapstructure:"max_age_days" default:"30"`
	Compress   bool `json:"compress" mapstructure:"compress"`
}

func (c *FileConfig) toWriterConfig() writer.RotateConfig {
	return writer.RotateConfig{
		Filepath: c.Filepath,
		Filename: c.Filename,
		FileExt:  c.FileExt,
		Mode:     c.RotateMode,
		TimeRotateConfig: writer.TimeRotateConfig{
			MaxAge:       c.MaxAgeHours,
			RotationTime: c.RotationTime,
		},
		SizeRotateConfig: writer.SizeRotateConfig{
			MaxSize:    c.MaxSize,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
			Compress:   c.Compress,
		},
	}
}
