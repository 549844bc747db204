package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"
)

type ivrResponse struct {
	AssistantText string             `json:"assistant_text"`
	Finished      bool               `json:"finished"`
	State         string             `json:"state"`
	CurrentField  string             `json:"current_field"`
	Transcript    string             `json:"transcript"`
	AudioURL      string             `json:"audio_url"`
	Fields        map[string]*string `json:"fields"`
}

// Uploads one recorded answer per file to /v1/ivr, in order, as one session.
func main() {
	server := flag.String("server", "http://localhost:8000", "HTTP server base URL")
	sessionID := flag.String("session", "audio-"+time.Now().Format("150405"), "Session ID")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		log.Fatal("usage: audioclient [-server URL] [-session ID] answer1.wav [answer2.mp3 ...]")
	}

	client := &http.Client{Timeout: 2 * time.Minute}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}

		res, err := upload(client, *server, *sessionID, path, data)
		if err != nil {
			log.Fatalf("Upload of %s failed: %v", path, err)
		}

		log.Printf("%s (%d bytes) heard: %q", filepath.Base(path), len(data), res.Transcript)
		fmt.Printf("assistant: %s   [%s %s]\n", res.AssistantText, res.State, res.CurrentField)
		if res.AudioURL != "" {
			fmt.Printf("           audio: %s\n", res.AudioURL)
		}
		if res.Finished {
			log.Println("Intake complete")
			return
		}
	}
}

func upload(client *http.Client, server, sessionID, path string, data []byte) (*ivrResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("session_id", sessionID); err != nil {
		return nil, err
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := client.Post(server+"/v1/ivr", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out ivrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
