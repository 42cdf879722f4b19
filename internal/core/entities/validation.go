package entities

// Severity is the level of a single validation message.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ValidationMessage is one finding produced by the validation pipeline
// (§4.1). Context carries structured detail (e.g. the offending
// entrypoint name / target pair) used for de-duplication (§8, property
// 8: no duplicate (code, filePath, context.path) triples).
type ValidationMessage struct {
	Severity   Severity
	Code       string
	Message    string
	Context    map[string]any
	FilePath   string
	Suggestion string
}

// ValidationResult is the composite result of running the validation
// pipeline: valid iff there are no error-severity messages.
type ValidationResult struct {
	Valid    bool
	Messages []ValidationMessage
	Errors   []ValidationMessage
	Warnings []ValidationMessage
	Info     []ValidationMessage
}

// ValidationBuilder accumulates ValidationMessages in insertion order
// and de-duplicates by (code, filePath, context["path"]).
type ValidationBuilder struct {
	messages []ValidationMessage
	seen     map[dedupeKey]bool
}

type dedupeKey struct {
	code     string
	filePath string
	ctxPath  string
}

// NewValidationBuilder creates an empty builder.
func NewValidationBuilder() *ValidationBuilder {
	return &ValidationBuilder{seen: make(map[dedupeKey]bool)}
}

// Add appends a message unless an equivalent (code, filePath,
// context.path) triple was already recorded.
func (b *ValidationBuilder) Add(msg ValidationMessage) {
	ctxPath, _ := msg.Context["path"].(string)
	key := dedupeKey{code: msg.Code, filePath: msg.FilePath, ctxPath: ctxPath}
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.messages = append(b.messages, msg)
}

// Errorf adds an error-severity message.
func (b *ValidationBuilder) Errorf(code, message string, ctx map[string]any) {
	b.Add(ValidationMessage{Severity: SeverityError, Code: code, Message: message, Context: ctx})
}

// Warnf adds a warning-severity message.
func (b *ValidationBuilder) Warnf(code, message string, ctx map[string]any) {
	b.Add(ValidationMessage{Severity: SeverityWarning, Code: code, Message: message, Context: ctx})
}

// Infof adds an info-severity message.
func (b *ValidationBuilder) Infof(code, message string, ctx map[string]any) {
	b.Add(ValidationMessage{Severity: SeverityInfo, Code: code, Message: message, Context: ctx})
}

// Build produces the final ValidationResult, partitioned by severity,
// preserving insertion order within each partition.
func (b *ValidationBuilder) Build() *ValidationResult {
	result := &ValidationResult{Messages: b.messages, Valid: true}
	for _, m := range b.messages {
		switch m.Severity {
		case SeverityError:
			result.Errors = append(result.Errors, m)
			result.Valid = false
		case SeverityWarning:
			result.Warnings = append(result.Warnings, m)
		case SeverityInfo:
			result.Info = append(result.Info, m)
		}
	}
	return result
}
