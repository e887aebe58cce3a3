package cfg

type Cfg struct {
	// Storage
	DBPath    string
	DataDir   string
	RedisAddr string

	// Application configuration
	SourcesDir        string
	Port              string
	WorkerURL         string
	SchedulerInterval int
	JobTimeout        int
	APIAccessKey      string
	EncryptionKey     string

	// Embedding backend
	EmbeddingProvider string
	EmbeddingURL      string
	EmbeddingModel    string
	EmbeddingAPIKey   string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
