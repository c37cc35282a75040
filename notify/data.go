package notify

const (
	colorGood   = "good"
	colorDanger = "danger"
)

// payload is the Slack incoming webhook message.
type payload struct {
	Text        string       `json:"text"`
	Attachments []attachment `json:"attachments,omitempty"`
}

type attachment struct {
	Color  string  `json:"color"`
	Title  string  `json:"title"`
	Fields []field `json:"fields,omitempty"`
	Footer string  `json:"footer,omitempty"`
}

type field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"`
}
