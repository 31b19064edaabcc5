package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pdfchat/pdfchat/api"
	"github.com/pdfchat/pdfchat/backend"
	"github.com/pdfchat/pdfchat/chat"
	"github.com/pdfchat/pdfchat/config"
	"github.com/pdfchat/pdfchat/database"
	"github.com/pdfchat/pdfchat/ingestion"
	"github.com/pdfchat/pdfchat/knowledge"
	"github.com/pdfchat/pdfchat/llm"
	"github.com/pdfchat/pdfchat/rag"
	"github.com/pdfchat/pdfchat/shell"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "upload":
		uploadCmd(cfg, logger, os.Args[2:])
	case "pdfs":
		pdfsCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.ListenAddr, "address to listen on")
	dataDir := flags.String("data", cfg.DataDir, "directory holding uploaded PDFs")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	driver, err := database.NewNeo4jDriver(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatalf("neo4j connection: %v", err)
	}
	defer driver.Close(ctx)

	if err := database.EnsureSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
		logger.Fatalf("ensure schema: %v", err)
	}

	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}
	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	graph := knowledge.NewGraph(driver)
	ingestSvc := ingestion.NewService(pool, graph, embedder, logger, cfg.Embeddings.Dimension)
	answerSvc := rag.NewService(
		rag.NewPostgresVectorStore(pool),
		rag.NewNeo4jGraphStore(driver),
		embedder,
		llmClient,
		logger,
	)

	apiSrv := api.New(*dataDir, answerSvc, ingestSvc, logger)

	// The shell is a client of the QA service like any other; when both run
	// in one process it simply points at the local listener.
	client := backend.New(shellBaseURL(cfg.BackendURL, *addr))
	sh := shell.New(client, client, client, logger)

	mux := http.NewServeMux()
	mux.Handle("/ask", apiSrv)
	mux.Handle("/upload_pdf", apiSrv)
	mux.Handle("/uploaded_pdfs", apiSrv)
	mux.Handle("/healthz", apiSrv)
	mux.Handle("/", sh)

	srv := &http.Server{
		Addr:    *addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	go sh.Init(ctx)

	logger.Printf("serving on %s (data dir %s)", *addr, *dataDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
}

func askCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	base := flags.String("base", cfg.BackendURL, "base URL of the question-answering service")
	pdf := flags.String("pdf", "", "scope the question to one uploaded PDF")
	question := flags.String("question", "", "question to ask")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ask flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatalf("read question: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := backend.New(*base)
	session := chat.NewSession()
	docs := chat.NewDocumentContext(logger)
	docs.Init(ctx, client)

	if *pdf != "" {
		if err := docs.Select(*pdf); err != nil {
			logger.Fatalf("select pdf: %v", err)
		}
	}

	dispatcher := chat.NewDispatcher(session, docs, client, logger)
	if err := dispatcher.Submit(ctx, *question); err != nil {
		logger.Fatalf("ask: %v", err)
	}

	for _, msg := range session.Messages() {
		if msg.Sender == chat.SenderBot {
			fmt.Println(msg.Answer.Render())
		}
	}
}

func uploadCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("upload", flag.ExitOnError)
	base := flags.String("base", cfg.BackendURL, "base URL of the question-answering service")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse upload flags: %v", err)
	}
	if flags.NArg() != 1 {
		logger.Fatalf("usage: pdfchat upload [--base URL] <file.pdf>")
	}

	path := flags.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatalf("read %s: %v", path, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := backend.New(*base)
	docs := chat.NewDocumentContext(logger)
	coordinator := chat.NewUploadCoordinator(client, docs, logger)

	if err := coordinator.Stage(filepath.Base(path), data); err != nil {
		logger.Fatalf("stage %s: %v", path, err)
	}
	stored, err := coordinator.Submit(ctx)
	if err != nil {
		logger.Fatalf("upload %s: %v", path, err)
	}

	fmt.Printf("uploaded %s\n", stored)
}

func pdfsCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("pdfs", flag.ExitOnError)
	base := flags.String("base", cfg.BackendURL, "base URL of the question-answering service")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse pdfs flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	names, err := backend.New(*base).ListPDFs(ctx)
	if err != nil {
		logger.Fatalf("list pdfs: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("no PDFs uploaded yet")
		return
	}
	for idx, name := range names {
		fmt.Printf("%d. %s\n", idx+1, name)
	}
}

// shellBaseURL keeps the configured backend URL unless it still points at
// the default while the listener moved, in which case the local address
// wins.
func shellBaseURL(configured, addr string) string {
	if configured != "" && configured != "http://127.0.0.1:8000" {
		return configured
	}
	return "http://" + addr
}

func printUsage() {
	fmt.Println("Usage: pdfchat <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Run the question-answering service and browser shell")
	fmt.Println("  ask      Ask a question, optionally scoped to an uploaded PDF")
	fmt.Println("  upload   Upload and ingest a PDF")
	fmt.Println("  pdfs     List uploaded PDFs")
}
