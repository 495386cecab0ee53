package requests

// WebhookPayload mirrors the channel's webhook envelope. Messages and
// delivery statuses arrive on the same endpoint.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Contacts         []WebhookContact `json:"contacts"`
	Messages         []WebhookMessage `json:"messages"`
	Statuses         []WebhookStatus  `json:"statuses"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type WebhookMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *WebhookMedia `json:"image"`
	Audio    *WebhookMedia `json:"audio"`
	Video    *WebhookMedia `json:"video"`
	Document *WebhookMedia `json:"document"`
	Sticker  *WebhookMedia `json:"sticker"`
}

type WebhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

// Media returns the attachment block matching the message type, if any.
func (m WebhookMessage) Media() *WebhookMedia {
	switch m.Type {
	case "image":
		return m.Image
	case "audio", "voice":
		return m.Audio
	case "video":
		return m.Video
	case "document":
		return m.Document
	case "sticker":
		return m.Sticker
	}
	return nil
}

// Body returns the text content of the message, falling back to the
// media caption.
func (m WebhookMessage) Body() string {
	if m.Text != nil {
		return m.Text.Body
	}
	if media := m.Media(); media != nil {
		return media.Caption
	}
	return ""
}

type WebhookStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Errors    []struct {
		Code  int    `json:"code"`
		Title string `json:"title"`
	} `json:"errors"`
}
