package settings

// DB config keys and defaults for settings.
const (
	// AdminsKey holds the Telegram ids allowed to run admin commands.
	AdminsKey = "ADMINS"
	// LowWatermarkKey overrides the pool size below which the monitor warns.
	LowWatermarkKey = "POOL_LOW_WATERMARK"
	// DefaultLowWatermark is the fallback low watermark.
	DefaultLowWatermark = 10
)
