package workflow

// Opt is one field of a partial update. The zero value leaves the field
// unchanged; Set replaces it; Clear resets it to its zero value.
type Opt[T any] struct {
	set bool
	val T
}

// Set returns an Opt that replaces the field with v.
func Set[T any](v T) Opt[T] {
	return Opt[T]{set: true, val: v}
}

// Clear returns an Opt that resets the field to its zero value.
func Clear[T any]() Opt[T] {
	return Opt[T]{set: true}
}

// IsSet reports whether the update touches the field.
func (o Opt[T]) IsSet() bool {
	return o.set
}

// Value returns the replacement value.
func (o Opt[T]) Value() T {
	return o.val
}

func (o Opt[T]) apply(cur T) T {
	if !o.set {
		return cur
	}
	return o.val
}

// Update is what a node returns. Untouched fields keep their current value;
// Messages are appended.
type Update struct {
	Draft        Opt[*Draft]
	Status       Opt[Status]
	Feedback     Opt[*Feedback]
	AttemptCount Opt[int]
	PublishedURL Opt[string]
	PublishedID  Opt[string]
	Error        Opt[string]
	Messages     []Message
}

// Merge returns s with u applied. Neither argument is modified and the
// result shares no mutable memory with s.
func Merge(s State, u Update) State {
	out := s
	out.Draft = u.Draft.apply(s.Draft).clone()
	out.Status = u.Status.apply(s.Status)
	out.Feedback = cloneFeedback(u.Feedback.apply(s.Feedback))
	out.AttemptCount = u.AttemptCount.apply(s.AttemptCount)
	out.PublishedURL = u.PublishedURL.apply(s.PublishedURL)
	out.PublishedID = u.PublishedID.apply(s.PublishedID)
	out.Error = u.Error.apply(s.Error)

	out.Messages = make([]Message, 0, len(s.Messages)+len(u.Messages))
	out.Messages = append(out.Messages, s.Messages...)
	out.Messages = append(out.Messages, u.Messages...)
	return out
}

func cloneFeedback(f *Feedback) *Feedback {
	if f == nil {
		return nil
	}
	out := *f
	return &out
}
