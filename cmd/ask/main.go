// Package main implements ask, a CLI that answers one textbook question
// against the configured stack and prints the answer as JSON.
//
//	ask [-config path] [-chapter ch_002] [-search] "How do I set up a ROS 2 workspace?"
//	ask -watch
//
// With no question argument the question is read from stdin. -watch prints
// every chat.answered event published by running servers, one JSON object
// per line, until interrupted.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/physai/bookrag/engine/app"
	"github.com/physai/bookrag/engine/domain"
	"github.com/physai/bookrag/engine/events"
	"github.com/physai/bookrag/pkg/config"
	"github.com/physai/bookrag/pkg/logging"
	"github.com/physai/bookrag/pkg/natsutil"
)

type pipeline interface {
	Answer(ctx context.Context, q domain.Query) (*domain.Answer, error)
	Search(ctx context.Context, q domain.Query, limit int) ([]domain.SearchHit, error)
}

// appPipeline answers through the app (publishing events) and searches
// through the rag service.
type appPipeline struct{ a *app.App }

func (p appPipeline) Answer(ctx context.Context, q domain.Query) (*domain.Answer, error) {
	return p.a.Answer(ctx, q)
}

func (p appPipeline) Search(ctx context.Context, q domain.Query, limit int) ([]domain.SearchHit, error) {
	return p.a.RAG.Search(ctx, q, limit)
}

type options struct {
	configPath string
	chapter    string
	user       string
	search     bool
	watch      bool
	limit      int
	timeout    time.Duration
	question   string
}

func parseFlags(args []string, stdin io.Reader) (options, error) {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	var o options
	fs.StringVar(&o.configPath, "config", os.Getenv("BOOKRAG_CONFIG"), "path to YAML config (optional)")
	fs.StringVar(&o.chapter, "chapter", "", "restrict retrieval to a chapter (ch_002 or 2)")
	fs.StringVar(&o.user, "user", "cli", "user id recorded on the chat event")
	fs.BoolVar(&o.search, "search", false, "print retrieved chunks instead of an answer")
	fs.BoolVar(&o.watch, "watch", false, "stream chat.answered events instead of asking")
	fs.IntVar(&o.limit, "n", 5, "number of chunks for -search")
	fs.DurationVar(&o.timeout, "timeout", 60*time.Second, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	o.question = strings.TrimSpace(strings.Join(fs.Args(), " "))
	if o.watch {
		return o, nil
	}
	if o.question == "" && stdin != nil {
		sc := bufio.NewScanner(stdin)
		var lines []string
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return o, fmt.Errorf("read question: %w", err)
		}
		o.question = strings.TrimSpace(strings.Join(lines, "\n"))
	}
	if o.question == "" {
		return o, errors.New("no question given")
	}
	return o, nil
}

func ask(ctx context.Context, p pipeline, o options, out io.Writer) error {
	chapter, err := domain.ParseChapterID(o.chapter)
	if err != nil {
		return err
	}
	q := domain.Query{Text: o.question, UserID: o.user, Chapter: chapter}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if o.search {
		hits, err := p.Search(ctx, q, o.limit)
		if err != nil {
			return err
		}
		return enc.Encode(hits)
	}
	ans, err := p.Answer(ctx, q)
	if err != nil {
		return err
	}
	return enc.Encode(struct {
		*domain.Answer
		QueryTimeMS int64 `json:"query_time_ms"`
	}{ans, ans.QueryTime.Milliseconds()})
}

// subscribeWatch writes each chat.answered event to out as one JSON line.
func subscribeWatch(nc *nats.Conn, out io.Writer) (*nats.Subscription, error) {
	var mu sync.Mutex
	enc := json.NewEncoder(out)
	return events.SubscribeChatAnswered(nc, func(_ context.Context, ev events.ChatAnswered) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(ev)
	})
}

func watch(ctx context.Context, cfg config.NATSConfig, out io.Writer, logger *zap.Logger) error {
	if cfg.URL == "" {
		return errors.New("watch: NATS_URL is not configured")
	}
	nc, err := natsutil.Connect(cfg.URL, "bookrag-ask", logger)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer nc.Close()

	sub, err := subscribeWatch(nc, out)
	if err != nil {
		return fmt.Errorf("watch: subscribe: %w", err)
	}
	defer sub.Unsubscribe()
	logger.Info("ask: watching chat events", zap.String("subject", events.SubjectChatAnswered))
	<-ctx.Done()
	return nil
}

func main() {
	o, err := parseFlags(os.Args[1:], os.Stdin)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "ask:", err)
		os.Exit(2)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ask:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ask:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if o.watch {
		if err := watch(ctx, cfg.NATS, os.Stdout, logger); err != nil {
			logger.Error("ask failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("ask: build", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close(context.Background())

	if err := ask(ctx, appPipeline{a}, o, os.Stdout); err != nil {
		logger.Error("ask failed", zap.Error(err))
		os.Exit(1)
	}
}
