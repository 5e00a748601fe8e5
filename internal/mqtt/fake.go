package mqtt

// Message is a published message recorded by FakeClient.
type Message struct {
	Topic   string
	Payload []byte
}

// FakeClient records published messages for test assertions.
type FakeClient struct {
	// Topics resolves subtopics to full topics.
	Topics Topics

	// Published contains all messages sent via Publish.
	Published []Message

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Begun tracks if Begin was called.
	Begun bool

	// Connected controls the return value of IsConnected.
	Connected bool

	handler MessageHandler
}

// NewFakeClient creates a FakeClient for testing.
func NewFakeClient(topics Topics) *FakeClient {
	return &FakeClient{Topics: topics}
}

// Publish records the message.
func (f *FakeClient) Publish(subtopic string, payload []byte) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Published = append(f.Published, Message{Topic: f.Topics.Publish(subtopic), Payload: payload})
	return nil
}

// PublishSystem records the system event.
func (f *FakeClient) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// SetCallback registers the inbound handler.
func (f *FakeClient) SetCallback(h MessageHandler) {
	f.handler = h
}

// Begin marks the client as started.
func (f *FakeClient) Begin() {
	f.Begun = true
}

// Deliver simulates an inbound message. Returns false if no handler is set.
func (f *FakeClient) Deliver(topic, msg string) bool {
	if f.handler == nil {
		return false
	}
	f.handler(topic, msg)
	return true
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	return f.Connected
}

// Reset returns the fake to its freshly constructed state. Topics are kept.
func (f *FakeClient) Reset() {
	*f = FakeClient{Topics: f.Topics}
}
