package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

type judgeResp struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ModelName string `json:"model_name"`
	Active    bool   `json:"active"`
}

type uploadResp struct {
	Message    string `json:"message"`
	Count      int    `json:"count"`
	ArchiveRef string `json:"archive_ref,omitempty"`
}

type runSummary struct {
	Planned   int      `json:"planned"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

type enqueueResp struct {
	RunID   string `json:"run_id"`
	QueueID string `json:"queue_id"`
	TaskID  string `json:"task_id"`
}

type runReport struct {
	RunID   string      `json:"run_id"`
	Summary *runSummary `json:"summary,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func main() {
	base := envOr("API_BASE_URL", "http://localhost:8000")
	model := envOr("SMOKE_MODEL", "llama3.2")

	baseFlag := flag.String("base", base, "API base URL (e.g., http://localhost:8000)")
	modelFlag := flag.String("model", model, "Ollama model the smoke judge uses")
	queueFlag := flag.String("queue", "smoke-queue", "Queue id to upload into")
	async := flag.Bool("async", false, "Enqueue the run on the worker instead of running inline")
	waitRun := flag.Duration("wait-run", 2*time.Minute, "How long to poll for the background run report")
	flag.Parse()

	httpc := &http.Client{Timeout: 5 * time.Minute}

	// 1) Create (or find) the judge
	judge, err := ensureJudge(httpc, *baseFlag, *modelFlag)
	if err != nil {
		fatalf("create judge: %v", err)
	}
	fmt.Printf("✅ Judge ready: id=%d name=%s model=%s\n", judge.ID, judge.Name, judge.ModelName)

	// 2) Upload a submission
	now := time.Now().UTC()
	subs := []map[string]any{{
		"id":             fmt.Sprintf("smoke-%d", now.Unix()),
		"queueId":        *queueFlag,
		"labelingTaskId": "smoke-task",
		"createdAt":      now.UnixMilli(),
		"questions": []map[string]any{{
			"rev": 1,
			"data": map[string]any{
				"id":           "q_sky",
				"questionType": "single_choice_with_reasoning",
				"questionText": "What color is a clear daytime sky?",
				"content":      "Rayleigh scattering makes short wavelengths dominate the daytime sky.",
			},
		}},
		"answers": map[string]any{
			"q_sky": map[string]any{"choice": "blue", "reasoning": "Short wavelengths scatter the most."},
		},
	}}
	var uploaded uploadResp
	if err := uploadFile(httpc, *baseFlag+"/api/submissions/upload", subs, &uploaded); err != nil {
		fatalf("upload: %v", err)
	}
	fmt.Printf("✅ Uploaded: count=%d archive=%q\n", uploaded.Count, uploaded.ArchiveRef)

	// 3) Assign the judge
	assign := map[string]any{"queue_id": *queueFlag, "question_template_id": "q_sky", "judge_ids": []int64{judge.ID}}
	if err := sendJSON(httpc, http.MethodPost, *baseFlag+"/api/assignments", assign, nil); err != nil {
		fatalf("assign: %v", err)
	}
	fmt.Println("✅ Assigned judge to q_sky")

	// 4) Run
	if *async {
		var enq enqueueResp
		if err := sendJSON(httpc, http.MethodPost, *baseFlag+"/api/evaluations/enqueue", map[string]any{"queue_id": *queueFlag}, &enq); err != nil {
			fatalf("enqueue: %v", err)
		}
		fmt.Printf("✅ Enqueued run: run_id=%s task_id=%s\n", enq.RunID, enq.TaskID)
		waitForReport(httpc, *baseFlag, enq.RunID, *waitRun)
	} else {
		var summary runSummary
		if err := sendJSON(httpc, http.MethodPost, *baseFlag+"/api/evaluations/run", map[string]any{"queue_id": *queueFlag}, &summary); err != nil {
			fatalf("run: %v", err)
		}
		fmt.Printf("✅ Run finished: %s\n", compactJSON(summary))
	}

	// 5) Stats
	var stats map[string]any
	if err := getJSON(httpc, fmt.Sprintf("%s/api/evaluations/stats?judge_ids=%d", *baseFlag, judge.ID), &stats); err != nil {
		fatalf("stats: %v", err)
	}
	fmt.Printf("✅ Stats for judge %d: %s\n", judge.ID, compactJSON(stats))

	fmt.Printf("🎉 Smoke run OK. Queue=%s\n", *queueFlag)
}

func ensureJudge(c *http.Client, base, model string) (*judgeResp, error) {
	const name = "smoke-judge"
	var j judgeResp
	err := sendJSON(c, http.MethodPost, base+"/api/judges", map[string]any{
		"name":          name,
		"model_name":    model,
		"system_prompt": "You grade short factual answers. Be strict about correctness.",
	}, &j)
	if err == nil {
		return &j, nil
	}

	var judges []judgeResp
	if lerr := getJSON(c, base+"/api/judges", &judges); lerr != nil {
		return nil, err
	}
	for _, existing := range judges {
		if existing.Name == name {
			return &existing, nil
		}
	}
	return nil, err
}

func waitForReport(c *http.Client, base, runID string, wait time.Duration) {
	deadline := time.Now().Add(wait)
	for {
		var rep runReport
		err := getJSON(c, fmt.Sprintf("%s/api/runs/%s", base, runID), &rep)
		if err == nil {
			if rep.Error != "" {
				fatalf("run %s failed: %s", runID, rep.Error)
			}
			fmt.Printf("✅ Run report: %s\n", compactJSON(rep))
			return
		}
		if time.Now().After(deadline) {
			fmt.Printf("ℹ️  Run report not available yet (is the archive configured?): %v\n", err)
			return
		}
		time.Sleep(3 * time.Second)
	}
}

// --- helpers ---

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func sendJSON(c *http.Client, method, url string, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, method, url, r)
	req.Header.Set("Content-Type", "application/json")
	return do(c, req, out)
}

func uploadFile(c *http.Client, url string, v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "submissions.json")
	if err != nil {
		return err
	}
	if _, err := fw.Write(b); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return do(c, req, out)
}

func getJSON(c *http.Client, url string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	return do(c, req, out)
}

func do(c *http.Client, req *http.Request, out any) error {
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s %s -> %d: %s", req.Method, req.URL, res.StatusCode, string(b))
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func compactJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func fatalf(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}
