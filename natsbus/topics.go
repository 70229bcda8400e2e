package natsbus

// Topics names the subjects under a common prefix.
type Topics struct {
	Prefix string
}

// DefaultTopics uses the "docpipe" prefix.
var DefaultTopics = Topics{Prefix: "docpipe"}

// Requests carries incoming work.
func (t Topics) Requests() string {
	return t.Prefix + ".requests"
}

func (t Topics) ResultsSuccess() string {
	return t.Prefix + ".results.success"
}

func (t Topics) ResultsError() string {
	return t.Prefix + ".results.error"
}

// Results matches both result subjects.
func (t Topics) Results() string {
	return t.Prefix + ".results.*"
}

func (t Topics) Stats() string {
	return t.Prefix + ".stats"
}
