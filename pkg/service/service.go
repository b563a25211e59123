package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/vladislav-moscow/Social/pkg/api"
	clierrors "github.com/vladislav-moscow/Social/pkg/errors"
	"github.com/vladislav-moscow/Social/pkg/config"
	"github.com/vladislav-moscow/Social/pkg/formatter"
	"github.com/vladislav-moscow/Social/pkg/localstore"
	"github.com/vladislav-moscow/Social/pkg/logger"
	"github.com/vladislav-moscow/Social/pkg/store"
	"github.com/vladislav-moscow/Social/pkg/websocket"
)

// SocialAPI is the REST surface the chat commands use.
type SocialAPI interface {
	store.ConversationAPI
	store.MessageAPI
	store.PostAPI
	CreatePost(ctx context.Context, req api.CreatePostRequest) (*api.Post, error)
	Follow(ctx context.Context, targetID, userID string) (*api.FollowResult, error)
	Unfollow(ctx context.Context, targetID, userID string) (*api.FollowResult, error)
}

// Relay is the live connection used by send and listen.
type Relay interface {
	Connect() error
	Disconnect() error
	Join(userID string) error
	Relay(p websocket.RelaySend) error
	On(msgType websocket.MessageType, listener websocket.Listener)
}

// Session holds the logged-in user id.
type Session interface {
	UserID() string
	SetUserID(userID string) error
}

// Options wires a ChatService. NewRelay is called once per live session.
type Options struct {
	API      SocialAPI
	KV       store.KV
	NewRelay func() Relay
	Session  Session
	TTL      time.Duration
	Timeout  time.Duration
	Out      io.Writer
}

// ChatService runs the chat commands on top of the client stores.
type ChatService struct {
	api      SocialAPI
	session  Session
	newRelay func() Relay
	timeout  time.Duration
	out      io.Writer
	closer   io.Closer

	conversations *store.ConversationStore
	messages      *store.MessageStore
	posts         *store.PostStore

	printMu sync.Mutex
	relay   Relay
}

// NewChatService builds a service from explicit dependencies.
func NewChatService(opts Options) *ChatService {
	out := opts.Out
	if out == nil {
		out = formatter.Out
	}
	return &ChatService{
		api:           opts.API,
		session:       opts.Session,
		newRelay:      opts.NewRelay,
		timeout:       opts.Timeout,
		out:           out,
		conversations: store.NewConversationStore(opts.API, opts.KV, opts.TTL),
		messages:      store.NewMessageStore(opts.API),
		posts:         store.NewPostStore(opts.API, opts.KV, opts.TTL),
	}
}

// NewDefaultChatService wires the service from the loaded configuration.
// Close releases the local store.
func NewDefaultChatService() (*ChatService, error) {
	dir := config.GetString("store.dir")
	kv, err := localstore.Open(dir)
	if err != nil {
		return nil, err
	}

	s := NewChatService(Options{
		API:      api.Default(),
		KV:       kv,
		NewRelay: defaultRelay,
		Session:  configSession{},
		TTL:      config.GetDuration("cache.ttl"),
		Timeout:  config.RequestTimeout(),
	})
	s.closer = kv
	return s, nil
}

func defaultRelay() Relay {
	cfg := websocket.DefaultConfig()
	if url := config.GetString("relay.url"); url != "" {
		cfg.URL = url
	}
	cfg.Origin = config.GetString("relay.origin")
	return websocket.NewClient(cfg)
}

// Close releases resources held by the service.
func (s *ChatService) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

type configSession struct{}

func (configSession) UserID() string { return config.GetString("user.id") }

func (configSession) SetUserID(userID string) error { return config.SetString("user.id", userID) }

// Login remembers userID for later commands.
func (s *ChatService) Login(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return clierrors.ValidationError("userId", "must not be empty")
	}
	if err := s.session.SetUserID(userID); err != nil {
		return err
	}
	logger.Debug("Logged in", "user_id", userID)
	s.printf(formatter.Success, "Logged in as %s\n", userID)
	return nil
}

// Logout clears the user's local state and forgets the user.
func (s *ChatService) Logout() error {
	userID, err := s.currentUser()
	if err != nil {
		return err
	}
	if err := s.conversations.ClearConversations(userID); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	if err := s.posts.ClearPosts(userID); err != nil {
		return fmt.Errorf("clear posts: %w", err)
	}
	s.messages.ClearMessages("")
	if err := s.session.SetUserID(""); err != nil {
		return err
	}
	s.printf(formatter.Success, "Logged out %s\n", userID)
	return nil
}

func (s *ChatService) currentUser() (string, error) {
	userID := s.session.UserID()
	if userID == "" {
		return "", clierrors.NotLoggedInError()
	}
	return userID, nil
}

func (s *ChatService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

type printer interface {
	Fprintf(w io.Writer, format string, a ...interface{}) (int, error)
}

// printf serializes output from command code and relay listeners.
func (s *ChatService) printf(p printer, format string, args ...interface{}) {
	s.printMu.Lock()
	defer s.printMu.Unlock()
	if p == nil {
		fmt.Fprintf(s.out, format, args...)
		return
	}
	_, _ = p.Fprintf(s.out, format, args...)
}

func (s *ChatService) println(line string) {
	s.printf(nil, "%s\n", line)
}
