package main

// Try the document prompts against the configured model:
//   go run ./cmd/prompttest -file lease.pdf -mode query -question "When does the lease end?"
//   go run ./cmd/prompttest -file lease.txt -mode clauses -types legal

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"legaldocs-backend/internal/extract"
	"legaldocs-backend/internal/llm"
	"legaldocs-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	filePath := flag.String("file", "", "Path to a document (txt, pdf or docx)")
	mode := flag.String("mode", "query", "Prompt to run: query or clauses")
	question := flag.String("question", "Summarize this document.", "Question for query mode")
	queryContext := flag.String("context", "general", "Query context: general, legal, technical, summary, specific")
	clauseTypes := flag.String("types", "all", "Clause types: all, legal, contractual, procedural, policy")
	language := flag.String("language", "en", "Response language")
	model := flag.String("model", cfg.GeminiModel, "Gemini model")
	outPath := flag.String("out", "", "Path to write the parsed JSON (optional)")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		exitErr("file path is required")
	}
	mimeType, err := mimeFromExt(*filePath)
	if err != nil {
		exitErr(err.Error())
	}
	data, err := os.ReadFile(*filePath)
	if err != nil {
		exitErr(fmt.Sprintf("read file: %v", err))
	}

	ctx := context.Background()
	text, err := extract.FromBytes(ctx, data, mimeType)
	if err != nil {
		exitErr(fmt.Sprintf("extract text: %v", err))
	}

	var prompt string
	switch strings.ToLower(strings.TrimSpace(*mode)) {
	case "query":
		prompt = llm.QueryPrompt(filepath.Base(*filePath), text, *question, *queryContext, *language)
	case "clauses":
		prompt = llm.ClauseExtractionPrompt(text, *clauseTypes, *language)
	default:
		exitErr(fmt.Sprintf("unsupported mode: %s", *mode))
	}

	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		exitErr("GEMINI_API_KEY is required")
	}
	gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, *model, cfg.GeminiTimeout)
	if err != nil {
		exitErr(fmt.Sprintf("gemini client: %v", err))
	}
	defer gemini.Close()

	raw, err := llm.WithRetry(gemini).Generate(ctx, prompt)
	if err != nil {
		exitErr(fmt.Sprintf("generate: %v", err))
	}

	var parsed any
	if err := llm.DecodeJSON(raw, &parsed); err != nil {
		fmt.Fprintf(os.Stderr, "reply was not JSON (%v); raw reply follows\n", err)
		fmt.Println(raw)
		os.Exit(2)
	}
	pretty, err := prettyJSON(parsed)
	if err != nil {
		exitErr(fmt.Sprintf("format output: %v", err))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func mimeFromExt(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return extract.MimeText, nil
	case ".pdf":
		return extract.MimePDF, nil
	case ".docx":
		return extract.MimeDOCX, nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

func prettyJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
