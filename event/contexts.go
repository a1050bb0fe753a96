package event

// Contexts is typed convenience sugar over the generic event tree's
// "contexts" map: named sub-contexts recovered from
// original_source/general/src/protocol/contexts.rs. Selectors still
// address these fields through the generic path syntax
// (contexts.device.*), since the underlying representation is still the
// plain Object/Node tree — this is additive reader/writer sugar, not a
// second traversal mechanism.
type Contexts struct {
	Device  *DeviceContext
	OS      *OSContext
	Runtime *RuntimeContext
	App     *AppContext
	Browser *BrowserContext
	Trace   *TraceContext
	GPU     *GPUContext
}

// DeviceContext describes the reporting device.
type DeviceContext struct {
	Name           string
	Family         string
	Model          string
	Arch           string
	BatteryLevel   float64
	Orientation    string
	Simulator      bool
	MemorySize     int64
	FreeMemory     int64
	StorageSize    int64
	FreeStorage    int64
	ScreenWidthPx  int
	ScreenHeightPx int
}

// OSContext describes the operating system.
type OSContext struct {
	Name         string
	Version      string
	Build        string
	KernelVersion string
	Rooted       bool
}

// RuntimeContext describes the managed runtime the SDK is embedded in.
type RuntimeContext struct {
	Name    string
	Version string
}

// AppContext describes the reporting application.
type AppContext struct {
	AppIdentifier string
	AppName       string
	AppVersion    string
	AppBuild      string
	AppStartTime  string
}

// BrowserContext describes the reporting browser.
type BrowserContext struct {
	Name    string
	Version string
}

// TraceContext carries distributed-tracing identifiers.
type TraceContext struct {
	TraceID     string
	SpanID      string
	ParentSpanID string
	Op          string
	Status      string
}

// GPUContext describes the reporting device's GPU.
type GPUContext struct {
	Name        string
	VendorName  string
	MemorySize  int64
	APIType     string
	MultiThreadedRendering bool
}

// ToNode renders c as a generic contexts-tagged object node so the
// selector/pii traversal sees it the same way it sees any other part of
// the event tree.
func (c *Contexts) ToNode() *Node {
	obj := NewObject()
	if c.Device != nil {
		obj.Set("device", c.Device.toNode())
	}
	if c.OS != nil {
		obj.Set("os", c.OS.toNode())
	}
	if c.Runtime != nil {
		obj.Set("runtime", c.Runtime.toNode())
	}
	if c.App != nil {
		obj.Set("app", c.App.toNode())
	}
	if c.Browser != nil {
		obj.Set("browser", c.Browser.toNode())
	}
	if c.Trace != nil {
		obj.Set("trace", c.Trace.toNode())
	}
	if c.GPU != nil {
		obj.Set("gpu", c.GPU.toNode())
	}
	return NewObjectNode(TypeContexts, obj)
}

func (d *DeviceContext) toNode() *Node {
	obj := NewObject()
	obj.Set("name", NewString(d.Name))
	obj.Set("family", NewString(d.Family))
	obj.Set("model", NewString(d.Model))
	obj.Set("arch", NewString(d.Arch))
	obj.Set("orientation", NewString(d.Orientation))
	obj.Set("simulator", NewBool(d.Simulator))
	return NewObjectNode(TypeObject, obj)
}

func (o *OSContext) toNode() *Node {
	obj := NewObject()
	obj.Set("name", NewString(o.Name))
	obj.Set("version", NewString(o.Version))
	obj.Set("build", NewString(o.Build))
	obj.Set("kernel_version", NewString(o.KernelVersion))
	obj.Set("rooted", NewBool(o.Rooted))
	return NewObjectNode(TypeObject, obj)
}

func (r *RuntimeContext) toNode() *Node {
	obj := NewObject()
	obj.Set("name", NewString(r.Name))
	obj.Set("version", NewString(r.Version))
	return NewObjectNode(TypeObject, obj)
}

func (a *AppContext) toNode() *Node {
	obj := NewObject()
	obj.Set("app_identifier", NewString(a.AppIdentifier))
	obj.Set("app_name", NewString(a.AppName))
	obj.Set("app_version", NewString(a.AppVersion))
	obj.Set("app_build", NewString(a.AppBuild))
	return NewObjectNode(TypeObject, obj)
}

func (b *BrowserContext) toNode() *Node {
	obj := NewObject()
	obj.Set("name", NewString(b.Name))
	obj.Set("version", NewString(b.Version))
	return NewObjectNode(TypeObject, obj)
}

func (t *TraceContext) toNode() *Node {
	obj := NewObject()
	obj.Set("trace_id", NewString(t.TraceID))
	obj.Set("span_id", NewString(t.SpanID))
	obj.Set("parent_span_id", NewString(t.ParentSpanID))
	obj.Set("op", NewString(t.Op))
	obj.Set("status", NewString(t.Status))
	return NewObjectNode(TypeObject, obj)
}

func (g *GPUContext) toNode() *Node {
	obj := NewObject()
	obj.Set("name", NewString(g.Name))
	obj.Set("vendor_name", NewString(g.VendorName))
	obj.Set("api_type", NewString(g.APIType))
	obj.Set("multi_threaded_rendering", NewBool(g.MultiThreadedRendering))
	return NewObjectNode(TypeObject, obj)
}
