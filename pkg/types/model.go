package types

// ModelKey identifies a specific version of a served model.
type ModelKey struct {
	// Name of the model as registered with the server.
	// example: dialog-state-tracker
	Name string `json:"name" example:"dialog-state-tracker"`
	// Version of the model. Zero selects the highest available version.
	// example: 1
	Version int64 `json:"version,omitempty" example:"1"`
}

// ModelConfig is the per-model section of a config file's model_config_list.
type ModelConfig struct {
	Name        string `json:"name" yaml:"name" toml:"name" example:"dialog-state-tracker"`
	BasePath    string `json:"base_path" yaml:"base_path" toml:"base_path" example:"/models/dialog-state-tracker"`
	Nireq       int    `json:"nireq,omitempty" yaml:"nireq,omitempty" toml:"nireq,omitempty" example:"4"`
	Stateful    bool   `json:"stateful,omitempty" yaml:"stateful,omitempty" toml:"stateful,omitempty" example:"true"`
	// MaxSequenceNumber bounds concurrently tracked sequences for this model; 0 means unbounded.
	MaxSequenceNumber       uint32 `json:"max_sequence_number,omitempty" yaml:"max_sequence_number,omitempty" toml:"max_sequence_number,omitempty" example:"500"`
	IdleSequenceCleanup     bool   `json:"idle_sequence_cleanup,omitempty" yaml:"idle_sequence_cleanup,omitempty" toml:"idle_sequence_cleanup,omitempty" example:"true"`
	LowLatencyTransformation bool  `json:"low_latency_transformation,omitempty" yaml:"low_latency_transformation,omitempty" toml:"low_latency_transformation,omitempty" example:"false"`
	PluginConfig            map[string]string `json:"plugin_config,omitempty" yaml:"plugin_config,omitempty" toml:"plugin_config,omitempty"`
	// Inputs declares the model's non-special input tensors for the Request
	// Validator. Real model servers read this from the model's own graph;
	// this engine has no model-introspection non-goal exemption for that, so
	// the config file carries it explicitly instead.
	Inputs []InputSpec `json:"inputs,omitempty" yaml:"inputs,omitempty" toml:"inputs,omitempty"`
}

// InputSpec is one declared input tensor in a model_config_list entry.
type InputSpec struct {
	Name      string  `json:"name" yaml:"name" toml:"name" example:"input"`
	Shape     []int64 `json:"shape" yaml:"shape" toml:"shape" example:"-1"`
	Precision string  `json:"precision,omitempty" yaml:"precision,omitempty" toml:"precision,omitempty" example:"float"`
}

// ModelMetadata describes a loaded model for GET /v2/models/{name}/versions/{version}.
type ModelMetadata struct {
	Name                string `json:"name" example:"dialog-state-tracker"`
	Version             int64  `json:"version" example:"1"`
	Stateful            bool   `json:"stateful" example:"true"`
	MaxSequenceNumber   uint32 `json:"max_sequence_number" example:"500"`
	ActiveSequences     int    `json:"active_sequences" example:"3"`
	LowLatencyTransform bool   `json:"low_latency_transformation" example:"false"`
}

// ErrorResponse is the consistent JSON error payload returned by the REST transport.
type ErrorResponse struct {
	// Error message.
	// example: sequence id not found
	Error string `json:"error" example:"sequence id not found"`
	// Closed status code name, see internal/statuscode.
	// example: SEQUENCE_MISSING
	Status string `json:"status" example:"SEQUENCE_MISSING"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// StatusResponse is returned by GET /status and summarizes every loaded model instance.
type StatusResponse struct {
	Models         []ModelMetadata `json:"models"`
	UptimeSeconds  int64           `json:"uptime_seconds" example:"3600"`
	ServerTimeUnix int64           `json:"server_time_unix" example:"1700000000"`
}
