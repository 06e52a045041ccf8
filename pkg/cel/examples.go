package cel

// FilterExpressionExamples are sample `dlt list --filter` expressions.
var FilterExpressionExamples = map[string]string{
	"by_original_topic":   `original_topic == "user.created"`,
	"by_exception_text":   `exception_message.contains("timeout")`,
	"by_exception_type":   `exception_type == "*errors.fundamental"`,
	"many_attempts":       `attempts >= 4`,
	"recent":              `received_at > timestamp("2024-01-01T00:00:00Z")`,
	"by_email_domain":     `has(event.email) && event.email.endsWith("@example.com")`,
	"undecodable_payload": `size(event) == 0`,
	"has_trace":           `"traceparent" in headers`,
	"combined":            `original_topic == "user.created" && attempts > 1 && !exception_message.startsWith("decode")`,
}
