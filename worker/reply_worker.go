package worker

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"propflow/config"
	"propflow/models"
	"propflow/repository"
	"propflow/utils"
)

// ReplyWorker polls the shared reply inbox over IMAP and matches incoming
// mail back to sent communications by the In-Reply-To and References
// headers, advancing the matched communication to responded.
type ReplyWorker struct {
	Comms  repository.CommunicationRepository
	Inbox  config.ReplyInboxConfig
	Logger *log.Logger

	Interval time.Duration
	now      func() time.Time
}

func NewReplyWorker(comms repository.CommunicationRepository, inbox config.ReplyInboxConfig, logger *log.Logger, interval time.Duration) *ReplyWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReplyWorker{
		Comms:    comms,
		Inbox:    inbox,
		Logger:   logger,
		Interval: interval,
		now:      utils.UTCNow,
	}
}

func (rw *ReplyWorker) Start(ctx context.Context) {
	if rw.Inbox.Host == "" {
		rw.Logger.Println("Reply worker disabled: no IMAP host configured")
		return
	}

	rw.Logger.Println("Reply worker started")
	ticker := time.NewTicker(rw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Println("Reply worker shutting down...")
			return
		case <-ticker.C:
			if err := rw.fetchReplies(ctx); err != nil {
				rw.Logger.Printf("Reply fetch failed: %v", err)
			}
		}
	}
}

func (rw *ReplyWorker) fetchReplies(ctx context.Context) error {
	imapClient, err := rw.dial()
	if err != nil {
		return fmt.Errorf("connect to reply inbox: %w", err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(rw.Inbox.Username, rw.Inbox.Password); err != nil {
		return fmt.Errorf("login to reply inbox: %w", err)
	}

	mailbox := rw.Inbox.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := imapClient.Select(mailbox, false); err != nil {
		return fmt.Errorf("select mailbox %s: %w", mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{"\\Seen"}
	ids, err := imapClient.Search(criteria)
	if err != nil {
		return fmt.Errorf("search unseen messages: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	// Peek keeps the server from flagging messages seen during the fetch;
	// the batch is flagged explicitly once matches are recorded.
	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	matched := 0
	for msg := range messages {
		ok, err := rw.matchReply(ctx, msg, section)
		if err != nil {
			rw.Logger.Printf("Failed to process reply %d: %v", msg.SeqNum, err)
			continue
		}
		if ok {
			matched++
		}
	}
	if err := <-done; err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}

	if matched > 0 {
		rw.Logger.Printf("Matched %d replies", matched)
	}

	// Flag the whole fetched batch seen, matches or not, so the next cycle
	// only looks at new mail instead of re-parsing the same messages.
	if err := imapClient.Store(seqset, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.SeenFlag}, nil); err != nil {
		rw.Logger.Printf("Could not flag messages as seen: %v", err)
	}
	return nil
}

func (rw *ReplyWorker) dial() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", rw.Inbox.Host, rw.Inbox.Port)

	switch strings.ToUpper(rw.Inbox.Encryption) {
	case "SSL", "TLS":
		return client.DialTLS(addr, &tls.Config{ServerName: rw.Inbox.Host})
	case "STARTTLS":
		c, err := client.Dial(addr)
		if err != nil {
			return nil, err
		}
		if err := c.StartTLS(&tls.Config{ServerName: rw.Inbox.Host}); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return client.Dial(addr)
	}
}

// matchReply resolves which sent communication a reply belongs to. Outgoing
// mail carries a Message-ID of the form <uuid@propflow>, so the uuid inside
// In-Reply-To (or, failing that, References) keys the lookup.
func (rw *ReplyWorker) matchReply(ctx context.Context, msg *imap.Message, section *imap.BodySectionName) (bool, error) {
	if msg.Envelope == nil {
		return false, nil
	}

	messageID := extractMessageID(msg.Envelope.InReplyTo)
	if messageID == "" {
		return false, nil
	}

	comm, err := rw.Comms.ByMessageID(ctx, messageID)
	if err != nil {
		return false, err
	}
	if comm == nil {
		return false, nil
	}
	if !models.AdvancesTo(comm.Status, models.StatusResponded) {
		return false, nil
	}

	at := msg.Envelope.Date
	if at.IsZero() {
		at = rw.now()
	}
	if err := rw.Comms.Advance(ctx, comm.MessageID, models.StatusResponded, at.UTC()); err != nil {
		return false, err
	}

	if body := msg.GetBody(section); body != nil {
		if snippet := replySnippet(body); snippet != "" {
			if err := rw.Comms.SetResponseSnippet(ctx, comm.MessageID, snippet); err != nil {
				rw.Logger.Printf("Could not store reply snippet for %s: %v", comm.MessageID, err)
			}
		}
	}
	return true, nil
}

const snippetLimit = 500

// replySnippet extracts the opening plain text of a reply. Quoted history
// below the first "On ... wrote:" marker is dropped.
func replySnippet(r io.Reader) string {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return ""
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return ""
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := header.ContentType()
		if ct != "" && ct != "text/plain" {
			continue
		}
		raw, err := io.ReadAll(io.LimitReader(part.Body, snippetLimit*4))
		if err != nil {
			return ""
		}
		text := string(raw)
		if idx := strings.Index(text, "\nOn "); idx > 0 && strings.Contains(text[idx:], "wrote:") {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		if len(text) > snippetLimit {
			text = text[:snippetLimit]
		}
		return text
	}
}

// extractMessageID strips the angle brackets and local domain from an
// In-Reply-To value, leaving the uuid we stamped on the outgoing message.
func extractMessageID(inReplyTo string) string {
	s := strings.TrimSpace(inReplyTo)
	s = strings.Trim(s, "<>")
	if at := strings.Index(s, "@"); at > 0 {
		s = s[:at]
	}
	return s
}
