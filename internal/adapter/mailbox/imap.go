package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"procurement-core/internal/domain/entity"
	"procurement-core/internal/domain/repository"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	AuthTimeout        time.Duration
	CommandTimeout     time.Duration
	InsecureSkipVerify bool
}

// IMAPMailbox opens TLS sessions against the shared vendor inbox.
type IMAPMailbox struct {
	cfg Config
}

func NewIMAPMailbox(cfg Config) *IMAPMailbox {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 10 * time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	return &IMAPMailbox{cfg: cfg}
}

// Connect dials TLS and waits for the server greeting, both bounded by timeout and ctx.
// Login is then bounded by the auth timeout and later commands by the command timeout.
func (m *IMAPMailbox) Connect(ctx context.Context, timeout time.Duration) (repository.MailboxSession, error) {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			ServerName:         m.cfg.Host,
			InsecureSkipVerify: m.cfg.InsecureSkipVerify,
		},
	}
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", entity.ErrTransport, addr, err)
	}

	// client.New blocks on the greeting; the deadline and ctx both unblock it.
	deadline, _ := dialCtx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", entity.ErrTransport, err)
	}
	stop := context.AfterFunc(dialCtx, func() { _ = conn.SetDeadline(time.Now()) })
	c, err := client.New(conn)
	stop()
	if err == nil && c.State() == imap.LogoutState {
		err = errors.New("connection closed before greeting")
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: greeting from %s: %v", entity.ErrTransport, addr, err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = c.Terminate()
		return nil, fmt.Errorf("%w: %v", entity.ErrTransport, err)
	}

	c.Timeout = m.cfg.AuthTimeout
	if err := c.Login(m.cfg.User, m.cfg.Password); err != nil {
		_ = c.Terminate()
		return nil, fmt.Errorf("%w: login as %s: %v", entity.ErrTransport, m.cfg.User, err)
	}
	c.Timeout = m.cfg.CommandTimeout

	return &imapSession{c: c}, nil
}

type imapSession struct {
	c *client.Client
}

func (s *imapSession) SelectInbox(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.c.Select("INBOX", false)
	return err
}

func (s *imapSession) SearchUnseenSince(ctx context.Context, since time.Time) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = since
	return s.c.UidSearch(criteria)
}

// Fetch reads whole messages without setting \Seen. A message that cannot be parsed is
// still returned, with whatever envelope data was available, so the caller can flag it.
func (s *imapSession) Fetch(ctx context.Context, uids []uint32) ([]entity.InboundMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.c.UidFetch(seqset, items, messages)
	}()

	var out []entity.InboundMessage
	for msg := range messages {
		out = append(out, toInbound(msg, section))
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return out, nil
}

func toInbound(msg *imap.Message, section *imap.BodySectionName) entity.InboundMessage {
	fallback := entity.InboundMessage{UID: msg.Uid, ReceivedAt: msg.InternalDate}
	if env := msg.Envelope; env != nil {
		fallback.Subject = env.Subject
		if len(env.From) > 0 {
			fallback.From = env.From[0].Address()
		}
	}

	body := msg.GetBody(section)
	if body == nil {
		log.Printf("[POLLER] uid=%d: server returned no body", msg.Uid)
		return fallback
	}
	parsed, err := ParseMessage(msg.Uid, body)
	if err != nil {
		log.Printf("[POLLER] uid=%d: unparsable message: %v", msg.Uid, err)
		return fallback
	}
	if parsed.From == "" {
		parsed.From = fallback.From
	}
	if parsed.ReceivedAt.IsZero() {
		parsed.ReceivedAt = fallback.ReceivedAt
	}
	return parsed
}

func (s *imapSession) MarkSeen(ctx context.Context, uid uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	return s.c.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.SeenFlag}, nil)
}

func (s *imapSession) Close() error {
	err := s.c.Logout()
	if err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
		_ = s.c.Terminate()
		return err
	}
	return nil
}
