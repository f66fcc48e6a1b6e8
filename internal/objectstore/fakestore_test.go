package objectstore

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/prn-tf/alexander-gateway/internal/sigv4"
)

const (
	testAccessKey = "AKIDEXAMPLE"
	testSecretKey = "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY"
)

type storedObject struct {
	body        []byte
	contentType string
	payloadHash string
}

// fakeStore is a path-style S3 endpoint that rejects requests whose SigV4
// signature does not verify.
type fakeStore struct {
	mu       sync.Mutex
	buckets  map[string]map[string]storedObject
	requests []*http.Request

	// failWith, when non-zero, answers every request with this status.
	failWith int
}

func newFakeStore(t *testing.T) (*fakeStore, *httptest.Server) {
	t.Helper()

	fs := &fakeStore{buckets: make(map[string]map[string]storedObject)}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.requests = append(fs.requests, r.Clone(r.Context()))

	if _, err := sigv4.VerifyRequest(r, sigv4.StaticSecret(testAccessKey, testSecretKey)); err != nil {
		writeS3Error(w, http.StatusForbidden, "SignatureDoesNotMatch", err.Error())
		return
	}

	if fs.failWith != 0 {
		writeS3Error(w, fs.failWith, "InternalError", "injected failure")
		return
	}

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")

	switch {
	case r.Method == http.MethodPut && key == "":
		if _, ok := fs.buckets[bucket]; ok {
			writeS3Error(w, http.StatusConflict, "BucketAlreadyOwnedByYou", "bucket exists")
			return
		}
		fs.buckets[bucket] = make(map[string]storedObject)
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPut:
		objects, ok := fs.buckets[bucket]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchBucket", bucket)
			return
		}
		body, _ := io.ReadAll(r.Body)
		objects[key] = storedObject{
			body:        body,
			contentType: r.Header.Get("Content-Type"),
			payloadHash: r.Header.Get(sigv4.XAmzContentSHA256Header),
		}
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && key == "":
		objects, ok := fs.buckets[bucket]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchBucket", bucket)
			return
		}
		prefix := r.URL.Query().Get("prefix")
		result := listBucketResult{Name: bucket, Prefix: prefix}
		for k, obj := range objects {
			if strings.HasPrefix(k, prefix) {
				result.Contents = append(result.Contents, listEntry{Key: k, Size: len(obj.body)})
			}
		}
		sort.Slice(result.Contents, func(i, j int) bool { return result.Contents[i].Key < result.Contents[j].Key })
		w.Header().Set("Content-Type", "application/xml")
		_ = xml.NewEncoder(w).Encode(result)

	default:
		writeS3Error(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

func (fs *fakeStore) object(bucket, key string) (storedObject, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	obj, ok := fs.buckets[bucket][key]
	return obj, ok
}

func (fs *fakeStore) lastRequest() *http.Request {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.requests) == 0 {
		return nil
	}
	return fs.requests[len(fs.requests)-1]
}

type listBucketResult struct {
	XMLName  xml.Name    `xml:"ListBucketResult"`
	Name     string      `xml:"Name"`
	Prefix   string      `xml:"Prefix"`
	Contents []listEntry `xml:"Contents"`
}

type listEntry struct {
	Key  string `xml:"Key"`
	Size int    `xml:"Size"`
}

func writeS3Error(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, "<Error><Code>"+code+"</Code><Message>"+message+"</Message></Error>")
}
