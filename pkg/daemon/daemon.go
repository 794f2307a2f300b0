// Package daemon serves compilations to editors over stdio. Each request and
// response is a length-prefixed JSON frame; offsets in responses are UTF-16
// code units.
package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"

	"github.com/walteh/gohyper/pkg/compiler"
	"github.com/walteh/gohyper/pkg/diagnostic"
	"github.com/walteh/gohyper/pkg/generate"
	"github.com/walteh/gohyper/pkg/position"
)

const DefaultMaxFrameBytes = 10 * 1024 * 1024

// ReadyLine is written once before the first frame is read.
const ReadyLine = "{\"ready\":true}\n"

type Request struct {
	Content   string `json:"content"`
	Injection bool   `json:"injection,omitempty"`
	Name      string `json:"name,omitempty"`
}

type Response struct {
	Compiled   string             `json:"compiled,omitempty"`
	Mappings   []generate.Mapping `json:"mappings,omitempty"`
	Ranges     []Range            `json:"ranges,omitempty"`
	Injections []Injection        `json:"injections,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type Range struct {
	Type          generate.RangeKind `json:"type"`
	SourceStart   int                `json:"source_start"`
	SourceEnd     int                `json:"source_end"`
	CompiledStart int                `json:"compiled_start"`
	CompiledEnd   int                `json:"compiled_end"`
}

type Injection struct {
	Type   generate.RangeKind `json:"type"`
	Start  int                `json:"start"`
	End    int                `json:"end"`
	Prefix string             `json:"prefix"`
	Suffix string             `json:"suffix"`
}

type Server struct {
	compiler *compiler.Compiler
	maxFrame int
	color    bool
}

type Option func(*Server)

// WithMaxFrameBytes sets the largest accepted request frame.
func WithMaxFrameBytes(n int) Option {
	return func(me *Server) {
		if n > 0 {
			me.maxFrame = n
		}
	}
}

// WithColor renders compile errors with ANSI colors.
func WithColor(color bool) Option {
	return func(me *Server) { me.color = color }
}

func NewServer(c *compiler.Compiler, opts ...Option) *Server {
	me := &Server{compiler: c, maxFrame: DefaultMaxFrameBytes}
	if me.compiler == nil {
		me.compiler = compiler.New()
	}
	for _, opt := range opts {
		opt(me)
	}
	return me
}

// Serve answers requests from r on w until r is exhausted, a frame is empty
// or oversized, or ctx is done. Requests are handled one at a time.
func (me *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) (err error) {
	logger := zerolog.Ctx(ctx)
	in := bufio.NewReader(r)
	out := bufio.NewWriter(w)
	defer func() {
		err = multierr.Append(err, out.Flush())
	}()

	if _, err := out.WriteString(ReadyLine); err != nil {
		return errors.Errorf("writing ready line: %w", err)
	}
	if err := out.Flush(); err != nil {
		return errors.Errorf("writing ready line: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		payload, err := ReadFrame(in, me.maxFrame)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Debug().Msg("daemon input closed")
				return nil
			case errors.Is(err, ErrEmptyFrame), errors.Is(err, ErrFrameTooLarge):
				logger.Debug().Err(err).Msg("daemon stopping")
				return nil
			}
			return errors.Errorf("reading request: %w", err)
		}

		resp := me.Handle(ctx, payload)
		data, err := json.Marshal(resp)
		if err != nil {
			return errors.Errorf("encoding response: %w", err)
		}
		if err := WriteFrame(out, data); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return errors.Errorf("flushing response: %w", err)
		}
	}
}

// Handle answers a single request payload.
func (me *Server) Handle(ctx context.Context, payload []byte) *Response {
	start := time.Now()
	logger := zerolog.Ctx(ctx).With().Str("request_id", uuid.NewString()).Logger()

	resp := me.handle(logger.WithContext(ctx), payload)

	event := logger.Debug().Dur("took", time.Since(start)).Int("bytes", len(payload))
	if resp.Error != "" {
		event = event.Bool("failed", true)
	}
	event.Msg("request handled")
	return resp
}

func (me *Server) handle(ctx context.Context, payload []byte) *Response {
	if !utf8.Valid(payload) {
		return &Response{Error: "Invalid UTF-8"}
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return &Response{Error: "Invalid request: " + err.Error()}
	}

	res, err := me.compiler.Compile(ctx, req.Content, "<stdin>", compiler.Options{
		FunctionName:  req.Name,
		IncludeRanges: req.Injection,
	})
	if err != nil {
		return &Response{Error: me.render(req.Content, err)}
	}

	resp := &Response{
		Compiled: res.Code,
		Mappings: res.Mappings,
	}
	if req.Injection {
		resp.Ranges = make([]Range, 0, len(res.Ranges))
		for _, r := range res.Ranges {
			resp.Ranges = append(resp.Ranges, Range{
				Type:          r.Kind,
				SourceStart:   r.SourceStartUTF16,
				SourceEnd:     r.SourceEndUTF16,
				CompiledStart: r.GeneratedStartUTF16,
				CompiledEnd:   r.GeneratedEndUTF16,
			})
		}
		resp.Injections = make([]Injection, 0, len(res.Injections))
		for _, inj := range res.Injections {
			resp.Injections = append(resp.Injections, Injection{
				Type:   inj.Kind,
				Start:  inj.Start,
				End:    inj.End,
				Prefix: inj.Prefix,
				Suffix: inj.Suffix,
			})
		}
	}
	return resp
}

func (me *Server) render(source string, err error) string {
	derr, ok := diagnostic.AsError(err)
	if !ok {
		return err.Error()
	}
	src := position.NewSource("<stdin>", source)
	if me.color {
		return derr.RenderColor(src, "<stdin>")
	}
	return derr.Render(src, "<stdin>")
}
