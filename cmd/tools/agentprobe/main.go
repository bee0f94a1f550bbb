package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/fabric-agent/backend/internal/config"
	"github.com/zhouzirui/fabric-agent/backend/internal/service/ai"
	"github.com/zhouzirui/fabric-agent/backend/internal/service/dataagent"
	"github.com/zhouzirui/fabric-agent/backend/internal/service/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Agent.Validate(); err != nil {
		log.Fatalf("invalid data agent configuration: %v", err)
	}

	question := flag.String("q", "", "question to ask; empty reads questions from stdin")
	thread := flag.String("thread", "", "thread name to continue; empty starts a new thread")
	timeout := flag.Duration("timeout", cfg.Agent.Timeout, "how long to wait for each answer")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := session.NewMemoryStore(session.Options{Capacity: cfg.Session.Capacity, TTL: cfg.Session.TTL})
	exec, err := dataagent.Connect(ctx, cfg.Agent, sessions)
	if err != nil {
		log.Fatalf("failed to connect to data agent: %v", err)
	}

	svc, err := ai.NewService(ctx, dataagent.NewChatModel(exec, *timeout))
	if err != nil {
		log.Fatalf("failed to build question chain: %v", err)
	}

	threadName := *thread
	if *question != "" {
		if _, err := ask(ctx, svc, *question, threadName); err != nil {
			log.Fatalf("query failed: %v", err)
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprint(os.Stderr, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			name, err := ask(ctx, svc, line, threadName)
			if err != nil {
				log.Printf("[ERROR] query failed: %v", err)
			} else {
				threadName = name
			}
		}
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(os.Stderr, "> ")
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("failed to read stdin: %v", err)
	}
}

// ask prints the answer and returns the thread name so the next question continues it.
func ask(ctx context.Context, svc *ai.Service, question, threadName string) (string, error) {
	start := time.Now()

	var opts []model.Option
	if threadName != "" {
		opts = append(opts, dataagent.WithThreadName(threadName))
	}

	resp, err := svc.Ask(ctx, question, opts...)
	if err != nil {
		return threadName, err
	}

	name, _ := resp.Extra[dataagent.ExtraThreadName].(string)
	if resp.Content == "" {
		fmt.Println("(no answer text returned)")
	} else {
		fmt.Println(resp.Content)
	}
	log.Printf("[INFO] thread=%s elapsed=%s", name, time.Since(start).Round(time.Millisecond))
	return name, nil
}
