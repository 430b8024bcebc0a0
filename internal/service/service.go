// Package service — доменное ядро: жизненный цикл заявок, журнал откликов,
// переписка, уведомления и админские выборки. Идентичность вызывающего
// (model.Actor) передаётся явно в каждую операцию.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/findme/internal/model"
	"github.com/findme/internal/storage"
)

// Виды ошибок. Конкретная ошибка — *Error с сообщением для клиента; errors.Is сравнивает вид.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")
)

// Error — ошибка домена с сообщением, которое можно показать пользователю.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// storeErr переводит ошибки хранилища: storage.ErrNotFound -> notFound, остальное оборачивается как внутренняя.
func storeErr(op string, err error, notFound string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return newError(ErrNotFound, notFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ItemStore — предметы со встроенными заявками.
type ItemStore interface {
	CreateItem(ctx context.Context, it *model.Item) error
	GetItem(ctx context.Context, id string) (*model.Item, error)
	GetItems(ctx context.Context, ids []string) (map[string]*model.Item, error)
	// ListItems возвращает предметы, новые первыми.
	ListItems(ctx context.Context, f model.ItemFilter) ([]*model.Item, error)
	// MutateItem атомарно применяет fn к предмету: при ошибке fn ничего не сохраняется.
	MutateItem(ctx context.Context, id string, fn func(*model.Item) error) (*model.Item, error)
	DeleteItem(ctx context.Context, id string) error
	// CountItems считает предметы; пустой тип — все.
	CountItems(ctx context.Context, t model.ItemType) (int, error)
}

// ChatStore — чаты и сообщения.
type ChatStore interface {
	// FindOrCreateChat возвращает чат по (item, пара участников), создавая c при отсутствии.
	FindOrCreateChat(ctx context.Context, c *model.Chat) (*model.Chat, error)
	GetChat(ctx context.Context, id string) (*model.Chat, error)
	// ListChatsByUser и ListChats сортируют по updatedAt, новые первыми.
	ListChatsByUser(ctx context.Context, userID string) ([]*model.Chat, error)
	ListChats(ctx context.Context) ([]*model.Chat, error)
	// AppendMessage в одной транзакции сохраняет сообщение, увеличивает счётчик
	// получателя и обновляет lastMessage.
	AppendMessage(ctx context.Context, m *model.Message, receiverID string) (*model.Chat, error)
	// ListMessages — по createdAt по возрастанию.
	ListMessages(ctx context.Context, chatID string) ([]*model.Message, error)
	// ReadMessages — то же, что ListMessages, и атомарно с чтением обнуляет счётчик userID.
	ReadMessages(ctx context.Context, chatID, userID string) ([]*model.Message, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	// ListUnread — непрочитанные, новые первыми.
	ListUnread(ctx context.Context, userID string) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id string) error
	CountUnread(ctx context.Context, userID string) (int, error)
}

type MatchStore interface {
	// CreateMatch возвращает storage.ErrConflict при повторе (item, requester, type).
	CreateMatch(ctx context.Context, m *model.Match) error
	GetMatch(ctx context.Context, id string) (*model.Match, error)
	ListMatchesByItems(ctx context.Context, itemIDs []string) ([]*model.Match, error)
	SetMatchStatus(ctx context.Context, id string, status model.MatchStatus, at time.Time) (*model.Match, error)
}

type UserStore interface {
	UpsertUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// Stores — набор хранилищ сервиса.
type Stores struct {
	Items         ItemStore
	Chats         ChatStore
	Notifications NotificationStore
	Matches       MatchStore
	Users         UserStore
}

// ImageResolver превращает имя файла изображения в URL для клиента.
type ImageResolver interface {
	ImageURL(ctx context.Context, name string) string
}

// Service реализует операции домена поверх Stores.
type Service struct {
	items         ItemStore
	chats         ChatStore
	notifications NotificationStore
	matches       MatchStore
	users         UserStore

	publisher Publisher
	images    ImageResolver
	clock     func() time.Time
	newID     func() string
	tracer    trace.Tracer
}

const tracerName = "github.com/findme/internal/service"

type Option func(*Service)

// WithPublisher задаёт доставку событий (WebSocket, push, RabbitMQ).
func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithImageResolver(r ImageResolver) Option { return func(s *Service) { s.images = r } }

func WithClock(clock func() time.Time) Option { return func(s *Service) { s.clock = clock } }

func WithIDGenerator(newID func() string) Option { return func(s *Service) { s.newID = newID } }

// WithTracerProvider заменяет глобальный провайдер otel.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

func New(st Stores, opts ...Option) *Service {
	s := &Service{
		items:         st.Items,
		chats:         st.Chats,
		notifications: st.Notifications,
		matches:       st.Matches,
		users:         st.Users,
		publisher:     nopPublisher{},
		clock:         time.Now,
		newID:         uuid.NewString,
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) now() time.Time { return s.clock().UTC() }

// startSpan открывает span операции; finish записывает ошибку и закрывает его.
func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := s.tracer.Start(ctx, "service."+name, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}
