package repository

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionSessions = "sessions"
	collectionMemories = "memories"
)

// Firestore implements Repository using Cloud Firestore. Memory
// records live in a subcollection under their session document, which
// keeps namespaces isolated by construction.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

// sessionDoc is the Firestore document representation of model.Session.
// LastArgs is stored as JSON because the argument value union has no
// flat document mapping.
type sessionDoc struct {
	ID              string          `firestore:"id"`
	Name            string          `firestore:"name"`
	Role            string          `firestore:"role"`
	Goals           []string        `firestore:"goals"`
	Transcript      []model.Message `firestore:"transcript"`
	NextActionCount int             `firestore:"next_action_count"`
	LastCommand     string          `firestore:"last_command"`
	LastArgsJSON    string          `firestore:"last_args_json"`
	LastReply       string          `firestore:"last_reply"`
	CreatedAt       time.Time       `firestore:"created_at"`
	UpdatedAt       time.Time       `firestore:"updated_at"`
}

func toSessionDoc(s *model.Session) *sessionDoc {
	return &sessionDoc{
		ID:              string(s.ID),
		Name:            s.Profile.Name,
		Role:            s.Profile.Role,
		Goals:           s.Profile.Goals,
		Transcript:      s.Transcript,
		NextActionCount: s.NextActionCount,
		LastCommand:     s.LastCommand,
		LastArgsJSON:    s.LastArgs.JSON(),
		LastReply:       s.LastReply,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func fromSessionDoc(d *sessionDoc) (*model.Session, error) {
	var rawArgs map[string]any
	if d.LastArgsJSON != "" {
		if err := json.Unmarshal([]byte(d.LastArgsJSON), &rawArgs); err != nil {
			return nil, goerr.Wrap(err, "failed to decode last args", goerr.V("session", d.ID))
		}
	}

	return &model.Session{
		ID: model.SessionID(d.ID),
		Profile: model.Profile{
			Name:  d.Name,
			Role:  d.Role,
			Goals: d.Goals,
		},
		Transcript:      d.Transcript,
		NextActionCount: d.NextActionCount,
		LastCommand:     d.LastCommand,
		LastArgs:        model.ArgsFrom(rawArgs),
		LastReply:       d.LastReply,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

func (r *Firestore) sessionRef(id model.SessionID) *firestore.DocumentRef {
	return r.client.Collection(collectionSessions).Doc(string(id))
}

func (r *Firestore) memoriesRef(id model.SessionID) *firestore.CollectionRef {
	return r.sessionRef(id).Collection(collectionMemories)
}

func (r *Firestore) PutSession(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = time.Now().UTC()

	if _, err := r.sessionRef(session.ID).Set(ctx, toSessionDoc(session)); err != nil {
		return goerr.Wrap(err, "failed to save session", goerr.V("session", session.ID))
	}
	return nil
}

func (r *Firestore) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	doc, err := r.sessionRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrSessionNotFound, "no such session", goerr.V("session", id))
		}
		return nil, goerr.Wrap(err, "failed to get session", goerr.V("session", id))
	}

	var d sessionDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal session", goerr.V("session", id))
	}

	return fromSessionDoc(&d)
}

// memoryDoc is the Firestore document representation of model.Memory.
// Embedding is stored as firestore.Vector32 for FindNearest vector
// search.
type memoryDoc struct {
	ID        string             `firestore:"id"`
	SessionID string             `firestore:"session_id"`
	Seq       int64              `firestore:"seq"`
	Text      string             `firestore:"text"`
	Embedding firestore.Vector32 `firestore:"embedding"`
	CreatedAt time.Time          `firestore:"created_at"`
}

func (r *Firestore) PutMemory(ctx context.Context, memory *model.Memory) error {
	doc := &memoryDoc{
		ID:        string(memory.ID),
		SessionID: string(memory.SessionID),
		Seq:       memory.Seq,
		Text:      memory.Text,
		Embedding: memory.Embedding,
		CreatedAt: memory.CreatedAt,
	}

	ref := r.memoriesRef(memory.SessionID).Doc(string(memory.ID))
	if _, err := ref.Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to save memory",
			goerr.V("session", memory.SessionID), goerr.V("memory", memory.ID))
	}
	return nil
}

func (r *Firestore) SearchMemories(ctx context.Context, sessionID model.SessionID, embedding []float32, limit int) ([]*model.Memory, error) {
	vq := r.memoriesRef(sessionID).
		FindNearest("embedding", firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine, nil)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	memories := make([]*model.Memory, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory search results",
				goerr.V("session", sessionID))
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory",
				goerr.V("session", sessionID))
		}

		memories = append(memories, &model.Memory{
			ID:        model.MemoryID(d.ID),
			SessionID: model.SessionID(d.SessionID),
			Seq:       d.Seq,
			Text:      d.Text,
			Embedding: d.Embedding,
			CreatedAt: d.CreatedAt,
		})
	}

	return memories, nil
}

func (r *Firestore) CountMemories(ctx context.Context, sessionID model.SessionID) (int64, error) {
	iter := r.memoriesRef(sessionID).Select().Documents(ctx)
	defer iter.Stop()

	var count int64
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, goerr.Wrap(err, "failed to count memories", goerr.V("session", sessionID))
		}
		count++
	}

	return count, nil
}

func (r *Firestore) ClearMemories(ctx context.Context, sessionID model.SessionID) error {
	iter := r.memoriesRef(sessionID).Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate memories for clear",
				goerr.V("session", sessionID))
		}
		if _, err := bw.Delete(doc.Ref); err != nil {
			return goerr.Wrap(err, "failed to schedule memory delete",
				goerr.V("session", sessionID))
		}
	}
	bw.End()

	return nil
}
