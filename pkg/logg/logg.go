package logg

const (
	Layer     = "layer"
	Operation = "operation"
	URL       = "url"
	Selector  = "selector"
	SessionID = "session_id"
	Source    = "source"
)
