// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"routingtables/common/helpers"
	"routingtables/common/httpserver"
	"routingtables/common/reporter"
	"routingtables/engine"
	"routingtables/engine/sink/kafkasink"
	"routingtables/engine/sink/logsink"
	"routingtables/engine/sink/promsink"
	"routingtables/engine/source/filesource"
)

// RecordSourceConfig is the interface a record-source provider's
// configuration must implement to plug into the run command.
type RecordSourceConfig interface {
	NewSource(r *reporter.Reporter) (engine.RecordSource, error)
}

// ViewSinkConfig is the interface a view-sink provider's configuration
// must implement to plug into the run command.
type ViewSinkConfig interface {
	NewViewSink(r *reporter.Reporter) (engine.ViewSink, error)
}

// MetricsSinkConfig is the interface a metrics-sink provider's
// configuration must implement to plug into the run command.
type MetricsSinkConfig interface {
	NewMetricsSink(r *reporter.Reporter) (engine.MetricsSink, error)
}

// RecordSourceConfiguration wraps the parametrized configuration for
// the record source the engine reads from.
type RecordSourceConfiguration struct {
	Config RecordSourceConfig
}

// MarshalYAML undoes RecordSourceConfigurationUnmarshallerHook().
func (rc RecordSourceConfiguration) MarshalYAML() (any, error) {
	return helpers.ParametrizedConfigurationMarshalYAML(rc, recordSourceProviders)
}

var recordSourceProviders = map[string](func() RecordSourceConfig){
	"file": func() RecordSourceConfig { return filesource.DefaultConfiguration() },
}

// ViewSinkConfiguration wraps the parametrized configuration for one
// of the engine's view sinks.
type ViewSinkConfiguration struct {
	Config ViewSinkConfig
}

// MarshalYAML undoes ViewSinkConfigurationUnmarshallerHook().
func (vc ViewSinkConfiguration) MarshalYAML() (any, error) {
	return helpers.ParametrizedConfigurationMarshalYAML(vc, viewSinkProviders)
}

var viewSinkProviders = map[string](func() ViewSinkConfig){
	"log":   func() ViewSinkConfig { return logsink.DefaultConfiguration() },
	"kafka": func() ViewSinkConfig { return kafkasink.DefaultConfiguration() },
}

// MetricsSinkConfiguration wraps the parametrized configuration for
// the engine's metrics sink.
type MetricsSinkConfiguration struct {
	Config MetricsSinkConfig
}

// MarshalYAML undoes MetricsSinkConfigurationUnmarshallerHook().
func (mc MetricsSinkConfiguration) MarshalYAML() (any, error) {
	return helpers.ParametrizedConfigurationMarshalYAML(mc, metricsSinkProviders)
}

var metricsSinkProviders = map[string](func() MetricsSinkConfig){
	"prometheus": func() MetricsSinkConfig { return promsink.DefaultConfiguration() },
	"kafka":      func() MetricsSinkConfig { return kafkasink.DefaultConfiguration() },
}

func init() {
	helpers.RegisterMapstructureUnmarshallerHook(
		helpers.ParametrizedConfigurationUnmarshallerHook(RecordSourceConfiguration{}, recordSourceProviders))
	helpers.RegisterMapstructureUnmarshallerHook(
		helpers.ParametrizedConfigurationUnmarshallerHook(ViewSinkConfiguration{}, viewSinkProviders))
	helpers.RegisterMapstructureUnmarshallerHook(
		helpers.ParametrizedConfigurationUnmarshallerHook(MetricsSinkConfiguration{}, metricsSinkProviders))
}

// RunConfiguration represents the configuration file for the run command.
type RunConfiguration struct {
	Reporting   reporter.Configuration
	HTTP        httpserver.Configuration
	Engine      engine.Configuration
	Source      RecordSourceConfiguration
	ViewSinks   []ViewSinkConfiguration
	MetricsSink MetricsSinkConfiguration
}

// Reset resets the configuration for the run command to its default value.
func (c *RunConfiguration) Reset() {
	*c = RunConfiguration{
		Reporting: reporter.DefaultConfiguration(),
		HTTP:      httpserver.DefaultConfiguration(),
		Engine:    engine.DefaultConfiguration(),
	}
	c.Source.Config = filesource.DefaultConfiguration()
	c.ViewSinks = []ViewSinkConfiguration{{Config: logsink.DefaultConfiguration()}}
	c.MetricsSink.Config = promsink.DefaultConfiguration()
}

// ConfigRelatedOptions are command-line options related to handling a
// configuration file.
type ConfigRelatedOptions struct {
	Path       string
	Dump       bool
	BeforeDump func()
}

// Parse parses the configuration file (if present) and the
// environment variables into the provided configuration.
func (c ConfigRelatedOptions) Parse(out io.Writer, component string, config interface{}) error {
	var rawConfig map[string]interface{}
	if cfgFile := c.Path; cfgFile != "" {
		if strings.HasPrefix(cfgFile, "http://") || strings.HasPrefix(cfgFile, "https://") {
			u, err := url.Parse(cfgFile)
			if err != nil {
				return fmt.Errorf("cannot parse configuration URL: %w", err)
			}
			resp, err := http.Get(u.String())
			if err != nil {
				return fmt.Errorf("unable to fetch configuration file: %w", err)
			}
			defer resp.Body.Close()
			if contentType := resp.Header.Get("Content-Type"); contentType != "application/json" {
				return fmt.Errorf("received configuration file is not JSON (%s)", contentType)
			}
			input, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("unable to read configuration file: %w", err)
			}
			if err := json.Unmarshal(input, &rawConfig); err != nil {
				return fmt.Errorf("unable to parse JSON configuration file: %w", err)
			}
		} else {
			input, err := os.ReadFile(cfgFile)
			if err != nil {
				return fmt.Errorf("unable to read configuration file: %w", err)
			}
			if err := yaml.Unmarshal(input, &rawConfig); err != nil {
				return fmt.Errorf("unable to parse configuration file: %w", err)
			}
		}
	}

	decoder, err := mapstructure.NewDecoder(helpers.GetMapStructureDecoderConfig(&config))
	if err != nil {
		return fmt.Errorf("unable to create configuration decoder: %w", err)
	}
	if err := decoder.Decode(rawConfig); err != nil {
		return fmt.Errorf("unable to parse configuration: %w", err)
	}

	// Override with environment variables, e.g. from
	// ROUTINGTABLES_CMP_ENGINE_V4FULLFEEDTHRESHOLD=100000, we build a
	// map "engine -> v4fullfeedthreshold -> 100000".
	for _, keyval := range os.Environ() {
		kv := strings.SplitN(keyval, "=", 2)
		if len(kv) != 2 {
			continue
		}
		kk := strings.Split(kv[0], "_")
		if len(kk) < 3 || kk[0] != "ROUTINGTABLES" || kk[1] != strings.ToUpper(component) {
			continue
		}
		var envConfig interface{} = kv[1]
		for i := len(kk) - 1; i > 1; i-- {
			if index, err := strconv.Atoi(kk[i]); err == nil {
				newEnvConfig := make([]interface{}, index+1)
				newEnvConfig[index] = envConfig
				envConfig = newEnvConfig
			} else {
				envConfig = map[string]interface{}{kk[i]: envConfig}
			}
		}
		if err := decoder.Decode(envConfig); err != nil {
			return fmt.Errorf("unable to parse override %q: %w", kv[0], err)
		}
	}

	if err := helpers.Validate.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.BeforeDump != nil {
		c.BeforeDump()
	}
	if c.Dump {
		output, err := yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("unable to dump configuration: %w", err)
		}
		out.Write([]byte("---\n"))
		out.Write(output)
		out.Write([]byte("\n"))
	}

	return nil
}
