package assets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/fsnotify/fsnotify"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/assets/loaders"
	"github.com/spaghettifunk/dyne/engine/core"
	"github.com/spaghettifunk/dyne/engine/resources"
)

var (
	ErrAssetNotFound   = errors.New("asset not found")
	ErrNoLoader        = errors.New("no loader registered for asset type")
	ErrManagerShutdown = errors.New("asset manager already shut down")
)

type AssetInfo struct {
	// Path is relative to the asset root, with forward slashes.
	Path       string
	Type       resources.ResourceType
	LastLoaded time.Time
	Modified   time.Time
}

type AssetEventOp uint8

const (
	AssetCreated AssetEventOp = iota
	AssetModified
	AssetRemoved
)

type AssetEvent struct {
	Op    AssetEventOp
	Asset AssetInfo
}

type FnOnAssetEvent func(AssetEvent)

// AssetManager indexes every file under a root directory by resource type
// and loads them on demand. With watching enabled the index follows the file
// system and listeners are told about changes.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[resources.ResourceType]Loader

	mutex     sync.RWMutex
	listeners []FnOnAssetEvent

	pool     worker.DynamicWorkerPool
	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

// NewAssetManager creates a manager whose batch loads run on at most
// workers goroutines.
func NewAssetManager(workers int) *AssetManager {
	if workers <= 0 {
		workers = 1
	}
	am := &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[resources.ResourceType]Loader),
		pool:    worker.NewDynamicWorkerPool(workers, 64, time.Second),
		done:    make(chan struct{}),
	}
	am.RegisterLoader(resources.ResourceTypeBinary, &loaders.BinaryLoader{})
	am.RegisterLoader(resources.ResourceTypeShader, &loaders.ShaderLoader{})
	am.RegisterLoader(resources.ResourceTypeImage, &loaders.ImageLoader{})
	am.RegisterLoader(resources.ResourceTypeMesh, &loaders.ModelLoader{})
	return am
}

// Initialize indexes assetsDir and, if watch is set, keeps the index in
// sync with the file system until Shutdown.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return errors.Wrapf(err, "invalid asset root %s", assetsDir)
	}
	am.root = root

	if watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return errors.Wrap(err, "failed to create file watcher")
		}
		am.fsnotify = w
		am.stopped = make(chan struct{})
		go am.start()
	}

	if err := am.watchRecursive(root, false); err != nil {
		return errors.Wrapf(err, "failed to index %s", root)
	}
	core.LogInfo("asset manager indexed %d files under %s (watch=%t)", am.Count(), root, watch)
	return nil
}

func (am *AssetManager) RegisterLoader(assetType resources.ResourceType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

// OnChange registers a listener for index changes. Listeners run on the
// watcher goroutine.
func (am *AssetManager) OnChange(fn FnOnAssetEvent) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.listeners = append(am.listeners, fn)
}

func (am *AssetManager) Root() string {
	return am.root
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) Exists(name string) bool {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	_, ok := am.assets[filepath.ToSlash(name)]
	return ok
}

// List returns the sorted paths of every indexed asset of the given type.
func (am *AssetManager) List(assetType resources.ResourceType) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	var out []string
	for p, a := range am.assets {
		if a.Type == assetType {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// LoadAsset loads the asset at name, relative to the asset root.
func (am *AssetManager) LoadAsset(name string, params interface{}) (*resources.Resource, error) {
	key := filepath.ToSlash(name)

	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil, ErrManagerShutdown
	}
	asset, exists := am.assets[key]
	if !exists {
		am.mutex.Unlock()
		return nil, errors.Wrap(ErrAssetNotFound, key)
	}
	asset.LastLoaded = time.Now()
	am.assets[key] = asset
	loader, ok := am.loaders[asset.Type]
	am.mutex.Unlock()

	if !ok {
		return nil, errors.Wrapf(ErrNoLoader, "%s (%s)", key, asset.Type)
	}
	res, err := loader.Load(filepath.Join(am.root, filepath.FromSlash(key)), params)
	if err != nil {
		return nil, err
	}
	core.LogDebug("loaded %s asset %s (%d bytes)", asset.Type, key, res.DataSize)
	return res, nil
}

// LoadAssets loads several assets in parallel on the worker pool. Results
// keep the order of names; the first failure is returned.
func (am *AssetManager) LoadAssets(names []string, params interface{}) ([]*resources.Resource, error) {
	out := make([]*resources.Resource, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		idx, n := i, name
		am.pool.SubmitTask(worker.Task{
			ID:      idx,
			Payload: n,
			Do: func() (any, error) {
				defer wg.Done()
				out[idx], errs[idx] = am.LoadAsset(n, params)
				return out[idx], errs[idx]
			},
		})
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", names[i])
		}
	}
	return out, nil
}

func (am *AssetManager) UnloadAsset(res *resources.Resource) error {
	am.mutex.RLock()
	loader, ok := am.loaders[res.Type]
	am.mutex.RUnlock()
	if !ok {
		return errors.Wrapf(ErrNoLoader, "%s", res.Type)
	}
	return loader.Unload(res)
}

// Shutdown stops watching and releases the worker pool.
func (am *AssetManager) Shutdown() {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	if am.stopped != nil {
		<-am.stopped
	}
	am.pool.Stop()
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleWatchEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			if err := am.fsnotify.Close(); err != nil {
				core.LogWarn("failed to close asset watcher: %s", err)
			}
			return
		}
	}
}

func (am *AssetManager) handleWatchEvent(e fsnotify.Event) {
	s, err := os.Stat(e.Name)
	if err == nil && s.IsDir() {
		if e.Op&fsnotify.Create != 0 {
			if err := am.watchRecursive(e.Name, false); err != nil {
				core.LogWarn("failed to watch %s: %s", e.Name, err)
			}
		}
		return
	}
	switch {
	case e.Op&fsnotify.Create != 0:
		am.handleFileEvent(e.Name, AssetCreated)
	case e.Op&fsnotify.Write != 0:
		am.handleFileEvent(e.Name, AssetModified)
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Can't stat a deleted path, so it may also have been a directory.
		am.removeAsset(e.Name)
		_ = am.fsnotify.Remove(e.Name)
	}
}

// watchRecursive indexes every file under path and, when watching, adds
// every directory to the watch list. A file created before its directory
// watch is added is picked up by the walk.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if am.fsnotify == nil {
				return nil
			}
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		if unWatch {
			am.removeAsset(walkPath)
			return nil
		}
		am.handleFileEvent(walkPath, AssetCreated)
		return nil
	})
}

func (am *AssetManager) relative(path string) (string, bool) {
	rel, err := filepath.Rel(am.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (am *AssetManager) handleFileEvent(path string, op AssetEventOp) {
	key, ok := am.relative(path)
	if !ok {
		return
	}
	assetType := determineAssetType(path)
	if assetType == resources.ResourceTypeNone {
		return
	}

	am.mutex.Lock()
	prev, existed := am.assets[key]
	info := AssetInfo{
		Path:       key,
		Type:       assetType,
		LastLoaded: prev.LastLoaded,
		Modified:   time.Now(),
	}
	am.assets[key] = info
	listeners := append([]FnOnAssetEvent(nil), am.listeners...)
	am.mutex.Unlock()

	if existed && op == AssetCreated {
		op = AssetModified
	}
	for _, fn := range listeners {
		fn(AssetEvent{Op: op, Asset: info})
	}
}

func (am *AssetManager) removeAsset(path string) {
	key, ok := am.relative(path)
	if !ok {
		return
	}
	am.mutex.Lock()
	info, existed := am.assets[key]
	delete(am.assets, key)
	listeners := append([]FnOnAssetEvent(nil), am.listeners...)
	am.mutex.Unlock()

	if !existed {
		return
	}
	for _, fn := range listeners {
		fn(AssetEvent{Op: AssetRemoved, Asset: info})
	}
}

func determineAssetType(path string) resources.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv", ".wgsl":
		return resources.ResourceTypeShader
	case ".obj":
		return resources.ResourceTypeMesh
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return resources.ResourceTypeImage
	case ".bin":
		return resources.ResourceTypeBinary
	case ".mtl", ".glsl", ".vert", ".frag", ".md", ".txt":
		return resources.ResourceTypeNone
	}
	// No known extension: sniff the header.
	kind, err := filetype.MatchFile(path)
	if err == nil && kind.MIME.Type == "image" {
		return resources.ResourceTypeImage
	}
	return resources.ResourceTypeNone
}
