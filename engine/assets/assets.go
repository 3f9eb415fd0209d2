package assets

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spaghettifunk/anima2d/engine/assets/loaders"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

var ErrAssetNotFound = errors.New("asset not found")

type AssetInfo struct {
	Path       string
	Type       loaders.ResourceType
	LastLoaded time.Time
}

// TextureCreator uploads decoded pixels. *renderer.Graphics implements it.
type TextureCreator interface {
	NewTexture(settings metadata.TextureSettings, pixels []byte) (metadata.Texture, error)
}

// AssetManager indexes the shader and font directories, loads files
// through the loader registered for their type and, when watching, fires
// EVENT_CODE_ASSET_CHANGED for every indexed file created, written or
// removed.
type AssetManager struct {
	shaderDir string
	fontDir   string
	watch     bool

	assets  map[string]AssetInfo
	loaders map[loaders.ResourceType]Loader

	mutex sync.RWMutex

	bus      *core.EventBus
	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager(cfg core.AssetsConfig, bus *core.EventBus) *AssetManager {
	return &AssetManager{
		shaderDir: filepath.Clean(cfg.ShaderDir),
		fontDir:   filepath.Clean(cfg.FontDir),
		watch:     cfg.Watch,
		assets:    make(map[string]AssetInfo),
		loaders:   make(map[loaders.ResourceType]Loader),
		bus:       bus,
		done:      make(chan struct{}),
	}
}

func (am *AssetManager) Initialize() error {
	// Register loaders
	am.registerLoader(loaders.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(loaders.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(loaders.ResourceTypeBitmapFont, &loaders.BitmapFontLoader{})
	am.registerLoader(loaders.ResourceTypeSystemFont, &loaders.SystemFontLoader{})

	if am.watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		am.fsnotify = w
	}

	for _, dir := range []string{am.shaderDir, am.fontDir} {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			core.LogWarn("asset directory %s does not exist, skipping", dir)
			continue
		}
		if err := am.watchRecursive(dir, false); err != nil {
			am.Shutdown()
			return err
		}
	}

	if am.fsnotify != nil {
		am.wg.Add(1)
		go am.start()
	}
	core.LogDebug("%d assets indexed", len(am.assets))
	return nil
}

// Shutdown stops the watcher. It is safe to call more than once.
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	if am.fsnotify != nil {
		return am.fsnotify.Close()
	}
	return nil
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Lookup returns the index entry of path.
func (am *AssetManager) Lookup(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.Clean(path)]
	return info, ok
}

// Assets lists the indexed paths in lexical order.
func (am *AssetManager) Assets() []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	paths := make([]string, 0, len(am.assets))
	for p := range am.assets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Load an asset using the appropriate loader
func (am *AssetManager) Load(path string, params interface{}) (*loaders.Resource, error) {
	path = filepath.Clean(path)

	am.mutex.Lock()
	asset, exists := am.assets[path]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}
	return loader.Load(path, params)
}

func (am *AssetManager) Unload(resource *loaders.Resource) error {
	loader, ok := am.loaders[resource.Type]
	if !ok {
		return nil
	}
	return loader.Unload(resource)
}

// ShaderPath is where the compiled stage of the named shader lives:
// <shader_dir>/<name>.<vert|frag|comp>.spv.
func (am *AssetManager) ShaderPath(name string, stage metadata.ShaderStageType) string {
	return filepath.Join(am.shaderDir, name+"."+stageExtension(stage)+".spv")
}

// ShaderSource reads one compiled stage of the named shader.
func (am *AssetManager) ShaderSource(name string, stage metadata.ShaderStageType) (string, error) {
	res, err := am.Load(am.ShaderPath(name, stage), nil)
	if err != nil {
		return "", err
	}
	return res.Data.(string), nil
}

// ShaderStageOf reverses ShaderPath. ok is false for files that are not
// compiled shader stages.
func ShaderStageOf(path string) (name string, stage metadata.ShaderStageType, ok bool) {
	base := filepath.Base(path)
	if filepath.Ext(base) != ".spv" {
		return "", 0, false
	}
	base = strings.TrimSuffix(base, ".spv")
	ext := filepath.Ext(base)
	for s := metadata.ShaderStageVertex; s < metadata.ShaderStageMax; s++ {
		if ext == "."+stageExtension(s) {
			return strings.TrimSuffix(base, ext), s, true
		}
	}
	return "", 0, false
}

func stageExtension(stage metadata.ShaderStageType) string {
	switch stage {
	case metadata.ShaderStageVertex:
		return "vert"
	case metadata.ShaderStagePixel:
		return "frag"
	case metadata.ShaderStageCompute:
		return "comp"
	}
	return "unknown"
}

// LoadFont loads the named font from the font directory, preferring a
// bitmap font (<name>.fnt) over a system font (<name>.fontcfg), and
// uploads its pages through tc.
func (am *AssetManager) LoadFont(tc TextureCreator, name string, params interface{}) (*renderer.Font, error) {
	data, err := am.LoadFontData(name, params)
	if err != nil {
		return nil, err
	}
	return NewFont(tc, name, data)
}

// LoadFontData decodes or rasterizes a font without touching the graphics
// context, so it can run on a job worker. Upload the result with NewFont.
func (am *AssetManager) LoadFontData(name string, params interface{}) (*loaders.FontData, error) {
	var res *loaders.Resource
	var err error
	for _, ext := range []string{".fnt", ".fontcfg"} {
		res, err = am.Load(filepath.Join(am.fontDir, name+ext), params)
		if !errors.Is(err, ErrAssetNotFound) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	data := res.Data.(*loaders.FontData)
	if err := am.Unload(res); err != nil {
		core.LogWarn("failed to unload font %s: %s", name, err)
	}
	return data, nil
}

// LoadTexture decodes an indexed image into an RGBA8 texture.
func (am *AssetManager) LoadTexture(tc TextureCreator, path string, flipY bool) (metadata.Texture, error) {
	res, err := am.Load(path, &loaders.ImageResourceParams{FlipY: flipY})
	if err != nil {
		return nil, err
	}
	defer am.Unload(res)
	return uploadImage(tc, res.Data.(*image.RGBA), filepath.Base(path))
}

// NewFont uploads every page of data and returns a font ready for Print.
func NewFont(tc TextureCreator, name string, data *loaders.FontData) (*renderer.Font, error) {
	f := &renderer.Font{
		Name:       name,
		Size:       data.Size,
		LineHeight: data.LineHeight,
		Base:       data.Base,
		PageWidth:  data.PageWidth,
		PageHeight: data.PageHeight,
		Glyphs:     data.Glyphs,
		Kerning:    data.Kerning,
		Pages:      make([]metadata.Texture, len(data.Pages)),
	}
	for i, p := range data.Pages {
		if p.Image == nil {
			continue
		}
		tex, err := uploadImage(tc, p.Image, fmt.Sprintf("font-%s-page-%d", name, i))
		if err != nil {
			f.Release()
			return nil, err
		}
		f.Pages[i] = tex
	}
	return f, nil
}

func uploadImage(tc TextureCreator, img *image.RGBA, name string) (metadata.Texture, error) {
	return tc.NewTexture(metadata.TextureSettings{
		Type:        metadata.TextureType2D,
		Format:      metadata.PixelFormatRGBA8,
		Width:       img.Rect.Dx(),
		Height:      img.Rect.Dy(),
		Layers:      1,
		MipmapCount: 1,
		DebugName:   name + "-" + uuid.NewString()[:8],
	}, img.Pix)
}

func (am *AssetManager) start() {
	defer am.wg.Done()
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
			return
		}
	}
}

func (am *AssetManager) handleWatchEvent(e fsnotify.Event) {
	name := filepath.Clean(e.Name)
	if e.Has(fsnotify.Create) {
		if s, err := os.Stat(name); err == nil && s.IsDir() {
			if err := am.watchRecursive(name, false); err != nil {
				core.LogWarn("failed to watch %s: %s", name, err)
			}
			return
		}
	}
	// Handle create or modify events
	if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) {
		if am.handleFileEvent(name) {
			am.fire(name, false)
		}
	}
	// A removed directory cannot be stat'ed, so every removal is treated
	// as a possible directory and dropped from the watch list.
	if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
		if am.removeAsset(name) {
			am.fire(name, true)
		}
		_ = am.fsnotify.Remove(name)
	}
}

func (am *AssetManager) fire(path string, removed bool) {
	if am.bus == nil {
		return
	}
	core.LogDebug("asset changed: %s (removed: %t)", path, removed)
	am.bus.Fire(core.EventContext{
		Type: core.EVENT_CODE_ASSET_CHANGED,
		Data: &core.AssetEvent{Path: path, Removed: removed},
	})
}

// watchRecursive indexes every file under path and, when watching, adds
// every directory to the watch list.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if am.fsnotify == nil {
				return nil
			}
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file. Reports whether the file
// is an asset.
func (am *AssetManager) handleFileEvent(path string) bool {
	assetType := determineAssetType(path)
	if assetType == loaders.ResourceTypeNone {
		return false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	path = filepath.Clean(path)
	info := am.assets[path]
	info.Path = path
	info.Type = assetType
	am.assets[path] = info
	return true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) bool {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	path = filepath.Clean(path)
	if _, ok := am.assets[path]; !ok {
		return false
	}
	delete(am.assets, path)
	return true
}

func determineAssetType(path string) loaders.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return loaders.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		return loaders.ResourceTypeImage
	case ".fnt":
		return loaders.ResourceTypeBitmapFont
	case ".fontcfg":
		return loaders.ResourceTypeSystemFont
	default:
		return loaders.ResourceTypeNone
	}
}
