package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/adotask/internal/ado"
	"github.com/kazz187/adotask/internal/session"
	"github.com/kazz187/adotask/internal/task"
	"github.com/kazz187/adotask/pkg/cerr"
	"github.com/kazz187/adotask/pkg/clog"
	"github.com/kazz187/adotask/pkg/panicerr"
)

// Service is the set of story and task operations the tools dispatch to.
type Service interface {
	SetStory(ctx context.Context, sess *session.Session, storyID string) (*task.StorySelection, error)
	Create(ctx context.Context, sess *session.Session, subject, description, activeForm string) (*task.CreatedTask, error)
	Update(ctx context.Context, sess *session.Session, taskID string, fields task.UpdateFields) (task.UpdateResult, error)
	List(ctx context.Context, sess *session.Session) (*task.StoryTasks, error)
	ListMine(ctx context.Context) (*task.AssignedTasks, error)
	Get(ctx context.Context, sess *session.Session, taskID string) (*task.Detail, error)
	Link(ctx context.Context, sess *session.Session, taskID, dependsOnID string) (*task.Dependency, error)
	ResolveStory(ctx context.Context, sess *session.Session) (*task.StoryResolution, error)
}

type SessionLoader interface {
	Load(ctx context.Context) (*session.Session, error)
}

type handler func(ctx context.Context, sess *session.Session, args json.RawMessage) (any, error)

// Tool describes one registered tool. Required arguments are taken from
// InputSchema.
type Tool struct {
	Name        string
	Title       string
	Description string
	InputSchema *jsonschema.Schema

	needsSession bool
	call         handler
}

func (t *Tool) Required() []string {
	return t.InputSchema.Required
}

// Router dispatches tool invocations one at a time and turns every failure
// into an error envelope.
type Router struct {
	mu       sync.Mutex
	sessions SessionLoader
	tools    map[string]*Tool
	order    []*Tool
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func NewRouter(svc Service, sessions SessionLoader) *Router {
	r := &Router{
		sessions: sessions,
		tools:    make(map[string]*Tool),
	}

	// set_story replaces the whole session, so it starts from an empty one.
	r.register(&Tool{
		Name:        "set_story",
		Title:       "Set Active Story",
		Description: "Set the active User Story for this session. All task operations target this story.",
		InputSchema: setStorySchema,
		call: bind(func(ctx context.Context, _ *session.Session, a setStoryArgs) (any, error) {
			return svc.SetStory(ctx, &session.Session{}, string(a.StoryID))
		}),
	})
	r.register(&Tool{
		Name:         "task_create",
		Title:        "Create Task",
		Description:  "Create an ADO Task as a child of the active story.",
		InputSchema:  taskCreateSchema,
		needsSession: true,
		call: bind(func(ctx context.Context, sess *session.Session, a taskCreateArgs) (any, error) {
			return svc.Create(ctx, sess, a.Subject, a.Description, a.ActiveForm)
		}),
	})
	r.register(&Tool{
		Name:         "task_update",
		Title:        "Update Task",
		Description:  "Update fields or state on an existing ADO Task.",
		InputSchema:  taskUpdateSchema,
		needsSession: true,
		call: bind(func(ctx context.Context, sess *session.Session, a taskUpdateArgs) (any, error) {
			return svc.Update(ctx, sess, string(a.TaskID), task.UpdateFields{
				Status:      task.Status(a.Status),
				Subject:     a.Subject,
				Description: a.Description,
				Owner:       a.Owner,
			})
		}),
	})
	r.register(&Tool{
		Name:         "task_list",
		Title:        "List Story Tasks",
		Description:  "List all Tasks that are children of the active story.",
		InputSchema:  object(nil),
		needsSession: true,
		call: bind(func(ctx context.Context, sess *session.Session, _ noArgs) (any, error) {
			return svc.List(ctx, sess)
		}),
	})
	r.register(&Tool{
		Name:         "task_get",
		Title:        "Get Task",
		Description:  "Get full details of a single Task Work Item.",
		InputSchema:  taskGetSchema,
		needsSession: true,
		call: bind(func(ctx context.Context, sess *session.Session, a taskGetArgs) (any, error) {
			return svc.Get(ctx, sess, string(a.TaskID))
		}),
	})
	r.register(&Tool{
		Name:         "task_link",
		Title:        "Link Tasks",
		Description:  "Create a predecessor/successor dependency link between two tasks.",
		InputSchema:  taskLinkSchema,
		needsSession: true,
		call: bind(func(ctx context.Context, sess *session.Session, a taskLinkArgs) (any, error) {
			return svc.Link(ctx, sess, string(a.TaskID), string(a.DependsOnID))
		}),
	})
	r.register(&Tool{
		Name:        "task_list_mine",
		Title:       "List My Tasks",
		Description: "List all Tasks across the project that are assigned to the current user (@Me).",
		InputSchema: object(nil),
		call: bind(func(ctx context.Context, _ *session.Session, _ noArgs) (any, error) {
			return svc.ListMine(ctx)
		}),
	})
	r.register(&Tool{
		Name:         "story_resolve",
		Title:        "Resolve Story",
		Description:  "Mark the active User Story as Resolved. Call this when implementation work is complete.",
		InputSchema:  object(nil),
		needsSession: true,
		call: bind(func(ctx context.Context, sess *session.Session, _ noArgs) (any, error) {
			return svc.ResolveStory(ctx, sess)
		}),
	})
	return r
}

func (r *Router) register(t *Tool) {
	r.tools[t.Name] = t
	r.order = append(r.order, t)
}

// Tools returns the registered tools in registration order.
func (r *Router) Tools() []*Tool {
	out := make([]*Tool, len(r.order))
	copy(out, r.order)
	return out
}

// Call runs one invocation and returns its result as indented JSON. Failures,
// panics included, come back as {"error": message}.
func (r *Router) Call(ctx context.Context, name string, args json.RawMessage) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx = clog.ContextWithSlog(ctx)
	clog.AddAttributes(ctx, map[string]any{
		clog.ToolAttributeKey:      name,
		clog.RequestIDAttributeKey: ulid.Make().String(),
	})
	startTime := time.Now()
	result, err := panicerr.SafeCall(ctx, func(ctx context.Context) (any, error) {
		return r.dispatch(ctx, name, args)
	})
	clog.AddAttribute(ctx, "duration", time.Since(startTime))

	if err != nil {
		clog.AddError(ctx, err)
		var cErr *cerr.Error
		if errors.As(err, &cErr) && cErr.Stack != "" {
			clog.AddStack(ctx, cErr.Stack)
		}
		clog.Log(ctx, errorLevel(err), "Failed")
		return encode(errorEnvelope{Error: cerr.Message(err)})
	}
	clog.Log(ctx, clog.LevelInfo, "Finished")
	return encode(result)
}

func (r *Router) dispatch(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, cerr.NewError(cerr.InvalidArgument, "Unknown tool: "+name, nil)
	}
	if err := checkRequired(args, t.Required()); err != nil {
		return nil, err
	}
	var sess *session.Session
	if t.needsSession {
		var err error
		sess, err = r.sessions.Load(ctx)
		if err != nil {
			return nil, err
		}
	}
	return t.call(ctx, sess, args)
}

// checkRequired fails when a required argument is absent or null.
func checkRequired(args json.RawMessage, required []string) error {
	present := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(args)) > 0 {
		if err := json.Unmarshal(args, &present); err != nil {
			return cerr.NewError(cerr.InvalidArgument, "Arguments must be a JSON object", err)
		}
	}
	for _, name := range required {
		v, ok := present[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return cerr.NewError(cerr.InvalidArgument, "Missing required argument: "+name, nil)
		}
	}
	return nil
}

func bind[A any](fn func(ctx context.Context, sess *session.Session, args A) (any, error)) handler {
	return func(ctx context.Context, sess *session.Session, raw json.RawMessage) (any, error) {
		var args A
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("Invalid arguments: %v", err), err)
			}
		}
		return fn(ctx, sess, args)
	}
}

func errorLevel(err error) clog.Level {
	var cErr *cerr.Error
	if errors.As(err, &cErr) {
		return cErr.Code.Level()
	}
	var adoErr *ado.Error
	if errors.As(err, &adoErr) {
		return clog.HTTPStatusToLevel(adoErr.StatusCode)
	}
	return clog.LevelError
}

func encode(v any) string {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		msg, _ := json.Marshal(err.Error())
		return fmt.Sprintf("{\n  \"error\": %s\n}", msg)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
