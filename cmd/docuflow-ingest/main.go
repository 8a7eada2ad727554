// docuflow-ingest walks a directory of documents and posts them to a
// running docuflow-server.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/docuflow/server/internal/docuflow/types"
	"github.com/docuflow/server/internal/ingest"
)

type Config struct {
	Addr   string
	Role   string
	Labels string
	Dir    string
}

func main() {
	config := parseFlags()

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Config {
	var config Config

	flag.StringVar(&config.Addr, "addr", "http://localhost:8080", "docuflow-server base URL")
	flag.StringVar(&config.Role, "role", "operator", "role to ingest as")
	flag.StringVar(&config.Labels, "labels", "general", "comma-separated access labels")
	flag.StringVar(&config.Dir, "dir", ".", "directory to ingest")
	flag.Parse()

	return config
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config Config) error {
	files, err := collectFiles(config.Dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("no ingestable files under %s", config.Dir)
		return nil
	}

	labels := splitLabels(config.Labels)
	client := &http.Client{Timeout: 30 * time.Second}

	color.Blue("\nIngesting %d files into %s as role %q\n", len(files), config.Addr, config.Role)
	bar := getProgressBar(len(files), "Ingesting documents...")

	var ingested, skipped int
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}

		text, err := ingest.Extract(filepath.Base(path), data)
		if err != nil || strings.TrimSpace(text) == "" {
			skipped++
			bar.Add(1)
			continue
		}

		rel, err := filepath.Rel(config.Dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}

		if err := postDocument(client, config, rel, text, labels); err != nil {
			return fmt.Errorf("ingest %s: %v", rel, err)
		}
		ingested++
		bar.Add(1)
	}
	bar.Finish()

	color.Green("\nIngested %d documents (%d skipped)\n", ingested, skipped)
	return nil
}

func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".html", ".htm", ".md", ".txt":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func postDocument(client *http.Client, config Config, rel, text string, labels []string) error {
	req := types.IngestRequest{
		Content:  text,
		Labels:   labels,
		Metadata: map[string]string{"source": rel},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, config.Addr+"/v1/documents", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Docuflow-Role", config.Role)

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func splitLabels(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
