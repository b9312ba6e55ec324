package envvar

const (
	// SummaEnv is the environment variable used to determine the environment
	SummaEnv = "SUMMA_ENV"

	// SummaConfig is the environment variable used to override the config file path
	SummaConfig = "SUMMA_CONFIG"

	// SummaModelPath is the environment variable used to pin the model file, bypassing discovery
	SummaModelPath = "SUMMA_MODEL_PATH"

	// SummaModelsPath is the environment variable used to override the models cache directory
	SummaModelsPath = "SUMMA_MODELS_PATH"

	// SummaLlamaBin is the environment variable used to locate the llama-cli binary
	SummaLlamaBin = "SUMMA_LLAMA_BIN"
)
