// collector-stub is a stand-in for the collector API used when running the
// client on a development host. It accepts registrations, timeseries logs
// and media uploads, and keeps the most recent ones for inspection.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

const (
	apiVersion = "1.0"
	maxStored  = 50
	maxUpload  = 32 << 20
)

type request struct {
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	Body      string `json:"body,omitempty"`
	File      string `json:"file,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

type stats struct {
	Devices      int64     `json:"devices"`
	Logs         int64     `json:"logs"`
	Uploads      int64     `json:"uploads"`
	LastRequests []request `json:"last_requests"`
	Since        string    `json:"since"`
}

type uploadResponse struct {
	APIVersion string `json:"apiVersion"`
	Status     string `json:"status"`
	Link       string `json:"link,omitempty"`
}

var (
	mu           sync.Mutex
	devices      int64
	logs         int64
	uploads      int64
	lastRequests []request
	since        time.Time
)

func main() {
	since = time.Now().UTC()

	addr := ":8000"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/update/device", jsonHandler(&devices))
	http.HandleFunc("/update/log", jsonHandler(&logs))
	http.HandleFunc("/upload/image", uploadHandler("image"))
	http.HandleFunc("/upload/audio", uploadHandler("audio"))
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		devices, logs, uploads = 0, 0, 0
		lastRequests = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("collector-stub listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

// jsonHandler accepts a JSON document and bumps counter.
func jsonHandler(counter *int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		defer r.Body.Close()
		if !json.Valid(body) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		n := record(counter, request{Path: r.URL.Path, Body: string(body)})
		log.Printf("%s #%d: %s", r.URL.Path, n, body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"apiVersion":%q,"status":"success"}`, apiVersion)
	}
}

// uploadHandler accepts a multipart "file" field and answers with a link.
func uploadHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(uploadResponse{APIVersion: apiVersion, Status: "failed"})
			return
		}
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(uploadResponse{APIVersion: apiVersion, Status: "failed"})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(uploadResponse{APIVersion: apiVersion, Status: "failed"})
			return
		}
		size, _ := io.Copy(io.Discard, file)
		file.Close()

		n := record(&uploads, request{Path: r.URL.Path, File: header.Filename, Size: size})
		link := fmt.Sprintf("stub://%s/%d/%s", kind, n, header.Filename)
		log.Printf("%s #%d: %s (%d bytes)", r.URL.Path, n, header.Filename, size)
		json.NewEncoder(w).Encode(uploadResponse{APIVersion: apiVersion, Status: "success", Link: link})
	}
}

func record(counter *int64, req request) int64 {
	req.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	mu.Lock()
	defer mu.Unlock()
	*counter++
	lastRequests = append(lastRequests, req)
	if len(lastRequests) > maxStored {
		lastRequests = lastRequests[len(lastRequests)-maxStored:]
	}
	return *counter
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Devices:      devices,
		Logs:         logs,
		Uploads:      uploads,
		LastRequests: lastRequests,
		Since:        since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
