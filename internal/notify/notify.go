// internal/notify/notify.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

var ErrDispatchFailed = errors.New("notifier dispatch failed")

type Contact struct {
	Name  string
	Phone string
}

// CallRecord logs one outbound call attempt.
type CallRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Phone     string    `json:"phone_number"`
	Status    string    `json:"status"` // "completed" | "failed"
	Score     float64   `json:"contamination_score"`
	SiteID    string    `json:"site_id"`
}

// VoiceCaller dispatches AI voice calls through an outbound telephony API,
// dialing the emergency contact list sequentially. Stateless towards the hub
// apart from its in-memory call log.
type VoiceCaller struct {
	url           string
	apiKey        string
	assistantID   string
	phoneNumberID string
	contacts      []Contact
	client        *http.Client

	mu  sync.Mutex
	log []CallRecord
}

const (
	callTimeout   = 10 * time.Second
	maxRetries    = 2
	retryInterval = 2 * time.Second
	maxLogSize    = 500
)

func NewVoiceCaller(url, apiKey, assistantID, phoneNumberID string, contacts []Contact) *VoiceCaller {
	return &VoiceCaller{
		url:           url,
		apiKey:        apiKey,
		assistantID:   assistantID,
		phoneNumberID: phoneNumberID,
		contacts:      contacts,
		client:        &http.Client{Timeout: callTimeout},
	}
}

// Notify dials every configured contact in order, logging each attempt.
// Returns ErrDispatchFailed only if no contact could be reached; the caller
// treats any outcome as best-effort.
func (v *VoiceCaller) Notify(ctx context.Context, siteID string, score float64) error {
	if len(v.contacts) == 0 {
		log.Printf("Notify: no emergency contacts configured, skipping outbound calls")
		return ErrDispatchFailed
	}

	reached := 0
	for _, contact := range v.contacts {
		if contact.Phone == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
		}

		log.Printf("Notify: dialing %s (%s) for %s", contact.Name, contact.Phone, siteID)
		err := v.dial(ctx, contact.Phone)
		status := "completed"
		if err != nil {
			status = "failed"
			log.Printf("Notify: call to %s failed: %v", contact.Phone, err)
		} else {
			reached++
		}
		v.record(CallRecord{
			Timestamp: time.Now().UTC(),
			Phone:     contact.Phone,
			Status:    status,
			Score:     score,
			SiteID:    siteID,
		})
	}

	if reached == 0 {
		return ErrDispatchFailed
	}
	return nil
}

// dial makes one call attempt with retries.
func (v *VoiceCaller) dial(ctx context.Context, phone string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"assistantId":   v.assistantID,
		"phoneNumberId": v.phoneNumberID,
		"customer":      map[string]string{"number": phone},
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryInterval):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := v.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			return nil
		}
		lastErr = fmt.Errorf("telephony API returned %d", resp.StatusCode)
	}
	return lastErr
}

func (v *VoiceCaller) record(r CallRecord) {
	v.mu.Lock()
	if len(v.log) >= maxLogSize {
		v.log = v.log[1:]
	}
	v.log = append(v.log, r)
	v.mu.Unlock()
}

// CallLog returns a copy of the outbound call history, newest last.
func (v *VoiceCaller) CallLog() []CallRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]CallRecord, len(v.log))
	copy(out, v.log)
	return out
}
