package s3store

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"time"
)

func writeTestFile(path string) error {
	return os.WriteFile(path, []byte("archive"), 0o644)
}

// fakeStore is an in-memory ObjectStore for tests.
type fakeStore struct {
	bucket   string
	missing  bool
	objects  map[string]ObjectInfo
	failCopy map[string]bool
	metadata map[string]map[string]string
}

func newFakeStore(bucket string) *fakeStore {
	return &fakeStore{
		bucket:   bucket,
		objects:  map[string]ObjectInfo{},
		failCopy: map[string]bool{},
		metadata: map[string]map[string]string{},
	}
}

func (f *fakeStore) put(key string, size int64, modTime time.Time) {
	f.objects[key] = ObjectInfo{Key: key, Size: size, LastModified: modTime}
}

func (f *fakeStore) Bucket() string { return f.bucket }

func (f *fakeStore) BucketExists(context.Context) (bool, error) {
	return !f.missing, nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for key, obj := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeStore) Upload(_ context.Context, key, _ string, metadata map[string]string) error {
	f.put(key, 1, time.Now())
	f.metadata[key] = metadata
	return nil
}

func (f *fakeStore) Remove(_ context.Context, key string) error {
	if _, ok := f.objects[key]; !ok {
		return errors.New("no such key: " + key)
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) RemovePrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeStore) Copy(_ context.Context, src ObjectStore, srcKey, dstKey string) error {
	if f.failCopy[srcKey] {
		return errors.New("copy failed: " + srcKey)
	}
	fs, ok := src.(*fakeStore)
	if !ok {
		return errors.New("fake copy needs a fake source")
	}
	if fs.failCopy[srcKey] {
		return errors.New("copy failed: " + srcKey)
	}
	obj, ok := fs.objects[srcKey]
	if !ok {
		return errors.New("no such source key: " + srcKey)
	}
	f.objects[dstKey] = ObjectInfo{Key: dstKey, Size: obj.Size, LastModified: time.Now()}
	return nil
}
