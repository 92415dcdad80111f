// Package cloudinary uploads images through Cloudinary's unsigned-preset
// endpoint and returns the hosted secure URL.
package cloudinary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/TomasGamarra/RappiFarma/internal/errs"
	"github.com/TomasGamarra/RappiFarma/internal/media"
)

// Uploader posts to https://api.cloudinary.com/v1_1/{cloud}/image/upload with
// an unsigned upload preset (no api_secret involved).
type Uploader struct {
	baseURL   string
	cloudName string
	preset    string
	client    *http.Client
}

var _ media.Uploader = (*Uploader)(nil)

// New builds an uploader for the given cloud name and unsigned preset.
func New(cloudName, preset string) *Uploader {
	return &Uploader{
		baseURL:   "https://api.cloudinary.com/v1_1",
		cloudName: cloudName,
		preset:    preset,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload streams one image and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeForm(mw, u.preset, name, r)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	endpoint := fmt.Sprintf("%s/%s/image/upload", u.baseURL, u.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return "", fmt.Errorf("build request: %w", errs.ErrUploadFailed)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %v: %w", name, err, errs.ErrUploadFailed)
	}
	defer resp.Body.Close()

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("upload %s: status %d without JSON: %w", name, resp.StatusCode, errs.ErrUploadFailed)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("upload %s: %s: %w", name, msg, errs.ErrUploadFailed)
	}
	if out.SecureURL == "" {
		return "", fmt.Errorf("upload %s: empty secure_url: %w", name, errs.ErrUploadFailed)
	}
	return out.SecureURL, nil
}

func writeForm(mw *multipart.Writer, preset, name string, r io.Reader) error {
	if err := mw.WriteField("upload_preset", preset); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}
