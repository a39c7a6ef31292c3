package service

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"mobilepush/internal/model"
)

const (
	// MaxContentLength is the number of characters kept in push content.
	MaxContentLength = 200

	redactedContent = "***REDACTED***"

	// U+2026 instead of three dots saves two characters of content.
	ellipsis = "…"
)

var emojiCodeRe = regexp.MustCompile(`emoji-(\S+)`)

// PayloadBuilder derives the Apple and Android payloads for a message.
// Its only state is the redaction setting.
type PayloadBuilder struct {
	redactContent bool
}

func NewPayloadBuilder(redactContent bool) *PayloadBuilder {
	return &PayloadBuilder{redactContent: redactContent}
}

// AlertText picks the alert line for a missed message.
func AlertText(msg *model.Message, trigger, streamName string) string {
	sender := msg.Sender.FullName
	switch {
	case msg.RecipientType == model.RecipientHuddle && trigger == model.TriggerPrivateMessage:
		return fmt.Sprintf("New private group message from %s", sender)
	case msg.RecipientType == model.RecipientPersonal && trigger == model.TriggerPrivateMessage:
		return fmt.Sprintf("New private message from %s", sender)
	case msg.RecipientType == model.RecipientStream && trigger == model.TriggerMentioned:
		return fmt.Sprintf("New mention from %s", sender)
	case msg.RecipientType == model.RecipientStream && trigger == model.TriggerStreamPushNotify && streamName != "":
		return fmt.Sprintf("New stream message from %s in %s", sender, streamName)
	default:
		return fmt.Sprintf("New Zulip mentions and private messages from %s", sender)
	}
}

// PlainText flattens rendered message HTML for display on a lock screen.
// Emoji become their unicode characters and other images their alt text.
func (b *PayloadBuilder) PlainText(rendered string) string {
	if b.redactContent {
		return redactedContent
	}

	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(rendered), root)
	if err != nil {
		log.Printf("[Push] Failed to parse rendered content: %v", err)
		return ""
	}

	var sb strings.Builder
	for _, n := range nodes {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			writePlainText(&sb, n)
		}
	}
	return sb.String()
}

// writePlainText writes an element's text in document order. If the element
// itself has a replacement, it stands in for the element's leading text only;
// child elements and the text following them are still written.
func writePlainText(sb *strings.Builder, n *html.Node) {
	replacement, replaced := elementText(n)
	if replaced {
		sb.WriteString(replacement)
	}
	leading := true
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if !(leading && replaced) {
				sb.WriteString(c.Data)
			}
			continue
		}
		leading = false
		if c.Type == html.ElementNode {
			writePlainText(sb, c)
		}
	}
}

// elementText applies, in order, the emoji rule and the image alt-text rule.
func elementText(n *html.Node) (string, bool) {
	if s, ok := emojiText(n); ok {
		return s, true
	}
	// Realm emoji, avatars etc.
	if n.DataAtom == atom.Img {
		return attr(n, "alt"), true
	}
	return "", false
}

// emojiText decodes class="emoji emoji-1f1fa-1f1f8" into its code points.
func emojiText(n *html.Node) (string, bool) {
	classes := attr(n, "class")
	if !strings.Contains(classes, "emoji") {
		return "", false
	}
	m := emojiCodeRe.FindStringSubmatch(classes)
	if m == nil {
		return "", false
	}
	var sb strings.Builder
	for _, cp := range strings.Split(m[1], "-") {
		v, err := strconv.ParseUint(cp, 16, 32)
		if err != nil || !utf8.ValidRune(rune(v)) {
			return "", false
		}
		sb.WriteRune(rune(v))
	}
	return sb.String(), true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Truncate keeps the first limit characters and appends an ellipsis when
// the text is longer. The ellipsis does not count against the limit.
func Truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + ellipsis
}

// APNsPayload builds the Apple payload for a message.
func (b *PayloadBuilder) APNsPayload(msg *model.Message, trigger, streamName string) model.APNsPayload {
	content := Truncate(b.PlainText(msg.RenderedContent), MaxContentLength)
	return model.APNsPayload{
		Alert: model.APNsAlert{
			Title: AlertText(msg, trigger, streamName),
			Body:  content,
		},
		// TODO: send the user's unread count once the message store exposes it
		Badge: 0,
		Custom: model.APNsCustom{
			Zulip: model.APNsZulipData{MessageIDs: []int64{msg.ID}},
		},
	}
}

// GCMPayload builds the Android payload for a message sent to user.
func (b *PayloadBuilder) GCMPayload(user *model.UserProfile, msg *model.Message, trigger, streamName string) model.GCMPayload {
	text := b.PlainText(msg.RenderedContent)

	payload := model.GCMPayload{
		User:             user.Email,
		Event:            "message",
		Alert:            AlertText(msg, trigger, streamName),
		ZulipMessageID:   msg.ID,
		Time:             msg.PubDate.Unix(),
		Content:          Truncate(text, MaxContentLength),
		ContentTruncated: utf8.RuneCountInString(text) > MaxContentLength,
		SenderEmail:      msg.Sender.Email,
		SenderFullName:   msg.Sender.FullName,
		SenderAvatarURL:  msg.Sender.AvatarURL,
	}

	switch msg.RecipientType {
	case model.RecipientStream:
		payload.RecipientType = "stream"
		payload.Stream = msg.DisplayRecipient
		payload.Topic = msg.Subject
	case model.RecipientHuddle, model.RecipientPersonal:
		payload.RecipientType = "private"
	}
	return payload
}
