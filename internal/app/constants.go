package app

const (
	Name           = "airqctl"
	SourceURL      = "https://git.skobk.in/skobkin/airqctl"
	ConfigFilename = "config.json"
	EnvFilename    = ".env"
	DBFilename     = "history.db"
	LogFilename    = "airqctl.log"
	TrayIconPath   = "internal/resources/tray/icon.png"
	// RecentSamplesLoad bounds the history shown on startup and by the CLI.
	RecentSamplesLoad = 50
)
