package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Polling configuration
	Subscriptions     string
	WorkerCount       int
	SchedulerInterval int
	PollBatch         int
	FetchTimeout      int
	MaxFailures       int
	MaxBackoff        int
	ProxyAttempts     int

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
