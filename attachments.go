package micropub

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"
)

// attachmentCategories in the order descriptors are resolved.
var attachmentCategories = []string{"photo", "audio", "video"}

const maxAttachmentSize = 32 << 20

// resolveAttachments collects referenced or uploaded media into staged
// files paired with descriptors. For each category the canonical
// properties are consulted first: URL values (or {value, alt} objects)
// are fetched into staging. Otherwise uploaded multipart files under the
// category's field name are staged. Respects per-category disabling and
// the single-file limit.
func resolveAttachments(ctx context.Context, pt PostType, props Properties, form *multipart.Form, stagingDir string, client *http.Client) ([]Attachment, *Error) {
	var result []Attachment
	for _, category := range attachmentCategories {
		rule := pt.Files[category]
		if rule.Disabled {
			continue
		}
		template := rule.Template
		if template == "" {
			template = category
		}

		if !props.Empty(category) {
			atts, err := stageRemoteValues(ctx, props.List(category), rule, category, template, stagingDir, client)
			if err != nil {
				return nil, err
			}
			result = append(result, atts...)
			continue
		}

		if form == nil {
			continue
		}
		uploads := form.File[category]
		if len(uploads) == 0 {
			uploads = form.File[category+"[]"]
		}
		if len(uploads) == 0 {
			continue
		}
		if !rule.AllowsMultiple() {
			uploads = uploads[:1]
		}
		dir, err := newStagingDir(stagingDir)
		if err != nil {
			return nil, errPublish("Staging directory could not be created: " + err.Error())
		}
		for _, fh := range uploads {
			name, serr := stageUpload(fh, dir)
			if serr != nil {
				return nil, errPublish("Uploaded file could not be staged: " + serr.Error())
			}
			result = append(result, Attachment{
				Filename: name,
				Source:   filepath.Join(dir, name),
				Category: category,
				Template: template,
			})
		}
	}
	return result, nil
}

// stageRemoteValues fetches each URL value of a property into a fresh
// staging subdirectory. Values may be plain URLs or {value, alt} objects.
func stageRemoteValues(ctx context.Context, values []any, rule FileRule, category, template, stagingDir string, client *http.Client) ([]Attachment, *Error) {
	if !rule.AllowsMultiple() && len(values) > 1 {
		values = values[:1]
	}
	var result []Attachment
	for _, v := range values {
		src, alt := joinValue(v), ""
		if m, ok := v.(map[string]any); ok {
			alt, _ = m["alt"].(string)
		}
		if !isURL(src) {
			continue
		}
		dir, err := newStagingDir(stagingDir)
		if err != nil {
			return nil, errPublish("Staging directory could not be created: " + err.Error())
		}
		name, err := stageRemote(ctx, client, src, dir)
		if err != nil {
			return nil, errPublish(fmt.Sprintf("Remote %s could not be fetched: %v", category, err))
		}
		result = append(result, Attachment{
			Filename: name,
			Source:   filepath.Join(dir, name),
			Category: category,
			Template: template,
			Alt:      alt,
		})
	}
	return result, nil
}

// newStagingDir creates a random-named subdirectory under the staging
// root. Random names stand in for locks between concurrent requests.
func newStagingDir(stagingDir string) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	dir := filepath.Join(stagingDir, hex.EncodeToString(buf))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// stageRemote downloads src into dir and returns the derived filename.
func stageRemote(ctx context.Context, client *http.Client, src, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	u, err := url.Parse(src)
	if err != nil {
		return "", err
	}
	name := safeFilename(path.Base(u.Path))
	out, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, io.LimitReader(resp.Body, maxAttachmentSize)); err != nil {
		out.Close()
		return "", err
	}
	return name, out.Close()
}

// stageUpload moves one multipart upload into dir and returns the
// sanitized filename.
func stageUpload(fh *multipart.FileHeader, dir string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := safeFilename(fh.Filename)
	out, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, io.LimitReader(src, maxAttachmentSize)); err != nil {
		out.Close()
		return "", err
	}
	return name, out.Close()
}

// cleanupStaging removes staging subdirectories older than ttl. Invoked
// opportunistically before each publish; failures are ignored since the
// next sweep will retry.
func cleanupStaging(stagingDir string, ttl time.Duration, now time.Time) {
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > ttl {
			os.RemoveAll(filepath.Join(stagingDir, e.Name()))
		}
	}
}
