package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Birthday-Sync/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Birthday Sync"
	AppID             = "com.github.calorbit.birthday-sync"
	KeyringService    = "com.github.calorbit.birthday-sync"
	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "sync.log"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	// Used for sensitive files like logs and settings.
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion     = "version"
	FlagDebug       = "debug"
	FlagConfig      = "config"
	FlagOnce        = "once"
	FlagPerson      = "person"
	FlagDescVersion = "Show application version and exit"
	FlagDescDebug   = "Enable debug logging to stdout"
	FlagDescConfig  = "Path to the YAML settings file"
	FlagDescOnce    = "Run a single full sync pass and exit"
	FlagDescPerson  = "Run a narrow sync for one person key and exit"

	MsgVersionOutput = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	SourceModeWeb   = "web"
	SourceModeLocal = "local"

	DefaultSettingsFile = "settings.yaml"
	DefaultStoreFile    = "calendar.db"
	DefaultPort         = "18080"
	DefaultSyncCron     = "@hourly"

	// DefaultHorizonPast/Future bound the expanded year window around the
	// current year. One year of look-behind keeps last year's events
	// visible when scrolling back; the forward window pre-materializes
	// upcoming occurrences.
	DefaultHorizonPast   = 1
	DefaultHorizonFuture = 1

	// DefaultBatchCeiling caps the operation count of one atomic apply.
	// The store transaction grows with the operation list, so large
	// directories are committed in slices.
	DefaultBatchCeiling = 200

	// DefaultLeapYear is the placeholder year used while parsing
	// year-less dates such as --02-29.
	DefaultLeapYear = 2000

	// UIDSalt feeds the deterministic person key hash.
	UIDSalt = "birthday-sync-v1-"
)

// DefaultReminderMinutes is the default reminder template: one notification
// on the day and one a day ahead. Settings may override it.
var DefaultReminderMinutes = []int{0, 1440}

// Leap-day policy names as they appear in the settings file.
const (
	LeapPolicyFeb28 = "feb28"
	LeapPolicySkip  = "skip"
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	// iCal Properties
	ICalVersion   = "2.0"
	ICalProdid    = "-//Birthday Sync//Engine//EN"
	ICalCalName   = "Birthdays"
	ICalMethod    = "PUBLISH"
	ICalScale     = "GREGORIAN"
	ICalComponent = "VALARM"
	ICalAction    = "DISPLAY"
	ICalDomain    = "birthdaysync"

	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDTStart     = "DTSTART"
	PropDTStamp     = "DTSTAMP"
	PropRefresh     = "REFRESH-INTERVAL"
	PropAction      = "ACTION"
	PropDescription = "DESCRIPTION"
	PropTrigger     = "TRIGGER"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"

	VCardBDAY      = "BDAY"
	VCardFN        = "FN"
	VCardN         = "N"
	VCardUID       = "UID"
	VCardXReminder = "X-BIRTHDAY-REMINDERS"

	DefaultICalRefresh = 1 * time.Hour
)

// -----------------------------------------------------------------------------
// Data Formats, Limits & File Extensions
// -----------------------------------------------------------------------------

const (
	// Date layouts used for parsing vCard BDAY fields
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
	DateFormatNoYearD   = "--01-02"
	DateFormatNoYearB   = "--0102"

	// UID Generation
	UIDHashLength   = 16
	FormatHashInput = "%s|%s|%s"
	FormatEventUID  = "%s-%d@%s"

	// File Extensions
	ExtVCF   = ".vcf"
	ExtVCard = ".vcard"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RetryAfterSeconds   = "10"
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 256 * 1024 * 1024 // 256MB
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	RouteRoot           = "/"
	AddrSeparator       = ":"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrLocalPathEmpty  = "configuration error: local path is empty"
	ErrWebURLEmpty     = "configuration error: web URL is empty"
	ErrFetcherMissing  = "internal error: network fetcher is not initialized"
	ErrModeUnsupport   = "configuration error: unsupported source mode"
	ErrSettingsPath    = "configuration error: settings path is empty"
	ErrServerStartup   = "server startup failed"
	ErrServerShutdown  = "server shutdown failed"
	ErrPortRequired    = "server port is required"
	ErrInvalidURL      = "invalid URL structure"
	ErrProtocol        = "unsupported protocol scheme (http/https only)"
	ErrVCardParse      = "failed to parse vCard stream"
	ErrICalEncode      = "failed to encode iCalendar data"
	ErrDateParse       = "unable to parse date"
	ErrLogFile         = "failed to open log file"
	ErrCacheDir        = "could not determine user cache dir"
	ErrCreateDir       = "could not create app cache dir"
	ErrAppFailed       = "application failed unexpectedly"
	ErrWriteResp       = "failed to write response body"
	ErrStoreOpen       = "failed to open calendar store"
	ErrStoreQuery      = "calendar store query failed"
	ErrStoreApply      = "calendar store batch apply failed"
	ErrSyncInFlight    = "a sync pass is already in progress"
	ErrUnknownPerson   = "person key not found in directory"
	ErrBadBirthDate    = "invalid birth date"
	ErrBadBackRef      = "reminder back-reference does not resolve to an earlier event insert"
	ErrCronSchedule    = "invalid sync cron schedule"
	ErrSettingsInvalid = "invalid settings"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Calendar initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
)

// -----------------------------------------------------------------------------
// Fallbacks & Formats
// -----------------------------------------------------------------------------

const (
	EventTitleFormat      = "Birthday: %s"
	EventTitleFormatAge   = "Birthday: %s (%d)"
	EventTitleFormatBirth = "Birthday: %s (birth)"
	FallbackName          = "Unknown"

	// StubVCalendar is the minimal valid iCalendar object used when the
	// store holds no events. It keeps feed clients from flagging the
	// subscription as invalid.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"

	MsgSyncStarted    = "Synchronization started..."
	MsgSyncFinished   = "Synchronization finished"
	MsgSyncSkipped    = "Skipping person with invalid birth date"
	MsgSkippedCard    = "Skipping malformed vCard"
	MsgSkippedDate    = "Skipping invalid date format"
	MsgBatchApplied   = "Sub-batch applied"
	MsgBatchBuilt     = "Operation batches built"
	MsgDuplicateFound = "Duplicate events for occurrence, keeping lowest id"
	MsgAppStarting    = "Starting application"
	MsgAppStop        = "Application stopped gracefully"
	MsgServerListen   = "HTTP server listening"
	MsgServerStop     = "Shutting down HTTP server..."
	MsgCacheUpdated   = "Calendar feed cache updated"
	MsgCronScheduled  = "Periodic sync scheduled"
	MsgFeedRendered   = "Calendar feed rendered"
	MsgStoreOpened    = "Calendar store opened"
	MsgPassFail       = "Password retrieval failed (might be empty)"
	MsgLogWarning     = "Warning: %s at %s: %v\n"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyMode      = "mode"
	LogKeyUser      = "user"
	LogKeyPort      = "port"
	LogKeyValue     = "value"
	LogKeyName      = "name"
	LogKeyPerson    = "person"
	LogKeyYear      = "year"
	LogKeyCount     = "count"
	LogKeyBatch     = "batch"
	LogKeyBatches   = "batches"
	LogKeyOps       = "operations"
	LogKeyInserts   = "inserts"
	LogKeyUpdates   = "updates"
	LogKeyDeletes   = "deletes"
	LogKeyPeople    = "people"
	LogKeyStats     = "stats"
	LogKeyStore     = "store"
	LogKeySchedule  = "schedule"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyDuration  = "duration_ms"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompEngine    = "engine"
	CompDirectory = "directory"
	CompFetcher   = "fetcher"
	CompStore     = "store"
	CompSyncer    = "syncer"
	CompFeed      = "feed"
	CompServer    = "server"
	CompMain      = "main"
)
