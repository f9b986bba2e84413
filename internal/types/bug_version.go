package types

// BugVersionAdvice names the replacement for one defective version.
type BugVersionAdvice struct {
	FixedVersion string `json:"version" yaml:"version"`
	Reason       string `json:"reason" yaml:"reason"`
}
