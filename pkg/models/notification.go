package models

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dukex/flytestate/internal/wire"
	"google.golang.org/protobuf/encoding/protowire"
)

// Channel is the delivery target of a notification: EmailNotification,
// SlackNotification or PagerDutyNotification.
type Channel interface {
	Kind() string
	Recipients() []string
	encoding() (protowire.Number, []byte)
}

type EmailNotification struct {
	RecipientsEmail []string `json:"recipients_email"`
}

type SlackNotification struct {
	RecipientsEmail []string `json:"recipients_email"`
}

type PagerDutyNotification struct {
	RecipientsEmail []string `json:"recipients_email"`
}

const (
	ChannelEmail     = "email"
	ChannelPagerDuty = "pager_duty"
	ChannelSlack     = "slack"
)

func (n EmailNotification) Kind() string             { return ChannelEmail }
func (n EmailNotification) Recipients() []string     { return n.RecipientsEmail }
func (n SlackNotification) Kind() string             { return ChannelSlack }
func (n SlackNotification) Recipients() []string     { return n.RecipientsEmail }
func (n PagerDutyNotification) Kind() string         { return ChannelPagerDuty }
func (n PagerDutyNotification) Recipients() []string { return n.RecipientsEmail }

func (n EmailNotification) encoding() (protowire.Number, []byte) {
	return 2, encodeRecipients(n.RecipientsEmail)
}

func (n PagerDutyNotification) encoding() (protowire.Number, []byte) {
	return 3, encodeRecipients(n.RecipientsEmail)
}

func (n SlackNotification) encoding() (protowire.Number, []byte) {
	return 4, encodeRecipients(n.RecipientsEmail)
}

func encodeRecipients(recipients []string) []byte {
	var e wire.Encoder
	e.Strings(1, recipients)

	return e.Bytes()
}

func decodeRecipients(message string, f wire.Field) ([]string, error) {
	payload, err := f.AsMessage()
	if err != nil {
		return nil, err
	}

	recipients := []string{}

	err = decode(message, payload, func(f wire.Field) error {
		if f.Num != 1 {
			return nil
		}

		r, err := f.AsString()
		if err != nil {
			return at("recipients_email", err)
		}

		recipients = append(recipients, r)

		return nil
	})

	return recipients, err
}

// Notification fires its channel when the execution enters one of Phases.
// A nil Channel is legal and inert.
type Notification struct {
	Phases  []WorkflowExecutionPhase
	Channel Channel
}

func NewNotification(channel Channel, phases ...WorkflowExecutionPhase) Notification {
	return Notification{Phases: slices.Clone(phases), Channel: channelValue(channel)}
}

// channelValue dereferences pointer channels; a nil pointer is no channel.
func channelValue(c Channel) Channel {
	switch c := c.(type) {
	case *EmailNotification:
		if c == nil {
			return nil
		}

		return *c
	case *PagerDutyNotification:
		if c == nil {
			return nil
		}

		return *c
	case *SlackNotification:
		if c == nil {
			return nil
		}

		return *c
	}

	return c
}

// FiresOn reports whether the notification is bound to phase.
func (n Notification) FiresOn(phase WorkflowExecutionPhase) bool {
	return channelValue(n.Channel) != nil && slices.Contains(n.Phases, phase)
}

func (n Notification) MarshalBinary() ([]byte, error) {
	var e wire.Encoder

	phases := make([]int32, 0, len(n.Phases))
	for _, p := range n.Phases {
		if !p.IsValid() {
			return nil, fmt.Errorf("notification: invalid phase %d", int32(p))
		}

		phases = append(phases, int32(p))
	}

	e.PackedEnums(1, phases)

	if c := channelValue(n.Channel); c != nil {
		num, payload := c.encoding()
		e.Message(num, payload)
	}

	return e.Bytes(), nil
}

func (n *Notification) UnmarshalBinary(data []byte) error {
	var (
		out      Notification
		channels int
	)

	err := decode("Notification", data, func(f wire.Field) error {
		switch f.Num {
		case 1:
			values, err := f.AsEnums()
			if err != nil {
				return at("phases", err)
			}

			for _, v := range values {
				p := WorkflowExecutionPhase(v)
				if !p.IsValid() {
					return at("phases", fmt.Errorf("enum value %d out of range", v))
				}

				out.Phases = append(out.Phases, p)
			}
		case 2:
			channels++

			recipients, err := decodeRecipients("EmailNotification", f)
			out.Channel = EmailNotification{RecipientsEmail: recipients}

			return at("email", err)
		case 3:
			channels++

			recipients, err := decodeRecipients("PagerDutyNotification", f)
			out.Channel = PagerDutyNotification{RecipientsEmail: recipients}

			return at("pager_duty", err)
		case 4:
			channels++

			recipients, err := decodeRecipients("SlackNotification", f)
			out.Channel = SlackNotification{RecipientsEmail: recipients}

			return at("slack", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if channels > 1 {
		return malformed("Notification", "type", ErrOneof)
	}

	*n = out

	return nil
}

type notificationJSON struct {
	Phases    []WorkflowExecutionPhase `json:"phases"`
	Email     *EmailNotification       `json:"email,omitempty"`
	PagerDuty *PagerDutyNotification   `json:"pager_duty,omitempty"`
	Slack     *SlackNotification       `json:"slack,omitempty"`
}

func (n Notification) MarshalJSON() ([]byte, error) {
	out := notificationJSON{Phases: n.Phases}

	switch c := channelValue(n.Channel).(type) {
	case EmailNotification:
		out.Email = &c
	case PagerDutyNotification:
		out.PagerDuty = &c
	case SlackNotification:
		out.Slack = &c
	}

	if out.Phases == nil {
		out.Phases = []WorkflowExecutionPhase{}
	}

	return json.Marshal(out)
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	var in notificationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	out := Notification{Phases: in.Phases}
	set := 0

	if in.Email != nil {
		out.Channel = *in.Email
		set++
	}

	if in.PagerDuty != nil {
		out.Channel = *in.PagerDuty
		set++
	}

	if in.Slack != nil {
		out.Channel = *in.Slack
		set++
	}

	if set > 1 {
		return fmt.Errorf("notification: %w", ErrOneof)
	}

	*n = out

	return nil
}

// NotificationList groups the notifications configured for an execution.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
}

func (l NotificationList) MarshalBinary() ([]byte, error) {
	var e wire.Encoder

	for _, n := range l.Notifications {
		if err := embed(&e, 1, n); err != nil {
			return nil, err
		}
	}

	return e.Bytes(), nil
}

func (l *NotificationList) UnmarshalBinary(data []byte) error {
	out := NotificationList{Notifications: []Notification{}}

	err := decode("NotificationList", data, func(f wire.Field) error {
		if f.Num != 1 {
			return nil
		}

		var n Notification
		if err := sub(f, &n); err != nil {
			return at("notifications", err)
		}

		out.Notifications = append(out.Notifications, n)

		return nil
	})
	if err != nil {
		return err
	}

	*l = out

	return nil
}

// Matching returns the notifications bound to phase, in list order.
func (l NotificationList) Matching(phase WorkflowExecutionPhase) []Notification {
	var out []Notification

	for _, n := range l.Notifications {
		if n.FiresOn(phase) {
			out = append(out, n)
		}
	}

	return out
}
