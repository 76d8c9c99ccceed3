// Package monitoring turns a running simulation into a web server, so that
// the device tree, the parameters and the progress can be inspected and the
// scheduler paused from a browser.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/sparta/monitoring/web"
	"github.com/sarchlab/sparta/param"
	"github.com/sarchlab/sparta/sim"
	"github.com/sarchlab/sparta/tree"
)

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	root       *tree.Root
	portNumber int
	idGen      sim.IDGenerator

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
	url    string
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{idGen: sim.NewXIDGenerator()}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterRoot registers the device tree to monitor. Its scheduler is the
// one that the monitor pauses and continues.
func (m *Monitor) RegisterRoot(r *tree.Root) {
	m.root = r
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGen.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseScheduler)
	r.HandleFunc("/api/continue", m.continueScheduler)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/tree", m.listTree)
	r.HandleFunc("/api/node/{path}", m.nodeDetails)
	r.HandleFunc("/api/field/{json}", m.fieldValue)
	r.HandleFunc("/api/params/{path}", m.listParams)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", m.url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			log.Panic(err)
		}
	}()

	return m.url, nil
}

// URL returns the address of a started server.
func (m *Monitor) URL() string {
	return m.url
}

// OpenBrowser shows the monitor page in the default browser.
func (m *Monitor) OpenBrowser() error {
	if m.url == "" {
		return fmt.Errorf("monitoring: server is not started")
	}

	return browser.OpenURL(m.url)
}

// StopServer shuts the server down.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

// hold keeps the scheduler between two events while fn runs, so that the
// model can be read from the server goroutine.
func (m *Monitor) hold(fn func()) {
	s := m.root.Scheduler()

	if s.IsPaused() {
		fn()
		return
	}

	s.Pause()
	defer s.Continue()

	fn()
}

func (m *Monitor) pauseScheduler(w http.ResponseWriter, _ *http.Request) {
	m.root.Scheduler().Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueScheduler(w http.ResponseWriter, _ *http.Request) {
	m.root.Scheduler().Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Now    sim.Tick `json:"now"`
	Fired  uint64   `json:"fired"`
	Paused bool     `json:"paused"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	s := m.root.Scheduler()
	rsp := nowRsp{Paused: s.IsPaused()}

	m.hold(func() {
		rsp.Now = s.CurrentTick()
		rsp.Fired = s.NumFired()
	})

	writeJSON(w, rsp)
}

type treeNodeRsp struct {
	Name     string         `json:"name"`
	Location string         `json:"location"`
	Factory  string         `json:"factory,omitempty"`
	Clock    string         `json:"clock,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Children []*treeNodeRsp `json:"children,omitempty"`
}

func describeNode(n *tree.Node) *treeNodeRsp {
	rsp := &treeNodeRsp{
		Name:     n.Name(),
		Location: n.Location(),
		Tags:     n.Tags(),
	}

	if f := n.Factory(); f != nil {
		rsp.Factory = f.Name()
	}

	if c := n.Clock(); c != nil {
		rsp.Clock = c.Name()
	}

	for _, c := range n.Children() {
		rsp.Children = append(rsp.Children, describeNode(c))
	}

	return rsp
}

func (m *Monitor) listTree(w http.ResponseWriter, _ *http.Request) {
	var rsp *treeNodeRsp

	m.hold(func() { rsp = describeNode(m.root.Node) })

	writeJSON(w, rsp)
}

// findNode resolves a location as printed by Node.Location.
func (m *Monitor) findNode(location string) (*tree.Node, bool) {
	rootName := m.root.Name()

	if location == rootName {
		return m.root.Node, true
	}

	rel, found := strings.CutPrefix(location, rootName+".")
	if !found {
		return nil, false
	}

	n, err := m.root.GetChild(rel)
	if err != nil {
		return nil, false
	}

	return n, true
}

func (m *Monitor) findNodeOr404(w http.ResponseWriter, location string) *tree.Node {
	n, found := m.findNode(location)
	if !found {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Node %s not found", location)

		return nil
	}

	return n
}

// inspected returns what the monitor serializes for a node: its resource
// when it has one, otherwise the node itself.
func inspected(n *tree.Node) any {
	if r := n.Resource(); r != nil {
		return r
	}

	return n
}

func (m *Monitor) nodeDetails(w http.ResponseWriter, r *http.Request) {
	n := m.findNodeOr404(w, mux.Vars(r)["path"])
	if n == nil {
		return
	}

	var buf bytes.Buffer

	var err error

	m.hold(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(inspected(n))
		serializer.SetMaxDepth(1)
		err = serializer.Serialize(&buf)
	})

	writeOr500(w, buf.Bytes(), err)
}

type fieldReq struct {
	NodePath  string `json:"node_path,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	n := m.findNodeOr404(w, req.NodePath)
	if n == nil {
		return
	}

	var buf bytes.Buffer

	m.hold(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(inspected(n))
		serializer.SetMaxDepth(1)

		err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
		if err == nil {
			err = serializer.Serialize(&buf)
		}
	})

	writeOr500(w, buf.Bytes(), err)
}

type paramRsp struct {
	Location string `json:"location"`
	Kind     string `json:"kind"`
	Value    string `json:"value"`
	Default  string `json:"default"`
	Doc      string `json:"doc,omitempty"`
	Reads    int    `json:"reads"`
	Writes   int    `json:"writes"`
}

func (m *Monitor) listParams(w http.ResponseWriter, r *http.Request) {
	n := m.findNodeOr404(w, mux.Vars(r)["path"])
	if n == nil {
		return
	}

	rsp := []paramRsp{}

	m.hold(func() {
		ps := n.Params()
		if ps == nil {
			return
		}

		for _, p := range ps.Params() {
			if p.Has(param.Hidden) {
				continue
			}

			rsp = append(rsp, paramRsp{
				Location: p.Location(),
				Kind:     p.Kind().String(),
				Value:    p.ValueString(),
				Default:  p.DefaultString(),
				Doc:      p.Doc(),
				Reads:    p.ReadCount(),
				Writes:   p.WriteCount(),
			})
		}
	})

	writeJSON(w, rsp)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		writeOr500(w, nil, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		writeOr500(w, nil, err)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		writeOr500(w, nil, err)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		writeOr500(w, nil, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		writeOr500(w, nil, err)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
	}

	writeOr500(w, data, err)
}

func writeOr500(w http.ResponseWriter, data []byte, err error) {
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	if _, err := w.Write(data); err != nil {
		log.Printf("monitoring: %v", err)
	}
}
