// Copyright 2025 The Autopeer Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

var formats = []string{"console", "json"}

// Options configures the process logger. It is the "log" section of the configuration file.
type Options struct {
	// Name is added to every entry as the logger name.
	Name string `json:"name,omitempty" mapstructure:"name"`

	// Level is one of debug, info, warn and error. It may be changed at runtime with SetLevel.
	Level string `json:"level,omitempty" mapstructure:"level"`

	// Format is console for an operator terminal or json for the rover's log shipper.
	Format string `json:"format,omitempty" mapstructure:"format"`

	EnableColor       bool `json:"enable-color,omitempty" mapstructure:"enable-color"`
	DisableCaller     bool `json:"disable-caller,omitempty" mapstructure:"disable-caller"`
	DisableStacktrace bool `json:"disable-stacktrace,omitempty" mapstructure:"disable-stacktrace"`

	// OutputPaths are zap sink URLs or file paths; stdout and stderr are accepted.
	OutputPaths []string `json:"output-paths,omitempty" mapstructure:"output-paths"`

	// CallerSkip is the number of frames between the caller and zap. 3 fits the package level
	// functions of this package.
	CallerSkip int `json:"-" mapstructure:"-"`
}

func NewOptions() *Options {
	return &Options{
		Level:       "info",
		Format:      "console",
		EnableColor: true,
		CallerSkip:  3,
		OutputPaths: []string{"stdout"},
	}
}

// Validate checks that the level and format are understood by zap.
func (o *Options) Validate() []error {
	var errs []error

	var l zapcore.Level
	if err := l.UnmarshalText([]byte(o.Level)); err != nil {
		errs = append(errs, fmt.Errorf("--log.level: %w", err))
	}
	if !slices.Contains(formats, o.Format) {
		errs = append(errs, fmt.Errorf("--log.format must be 'json' or 'console', got %q", o.Format))
	}
	return errs
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "log.name", o.Name, "Logger name added to every entry.")
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum level: debug, info, warn or error.")
	fs.StringVar(&o.Format, "log.format", o.Format, "Output format: console or json.")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Color the level of console output.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Omit the file:line of the caller.")
	fs.BoolVar(&o.DisableStacktrace, "log.disable-stacktrace", o.DisableStacktrace, "Omit stack traces on error entries.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Where to write entries, e.g. stdout or /var/log/roverpilot.log.")
}
