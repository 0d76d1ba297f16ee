package adapters

import (
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     Kind
	}{
		{"main.go", KindDelve},
		{"app.py", KindPython},
		{"index.js", KindNodeJS},
		{"server.ts", KindNodeJS},
		{"mod.mjs", KindNodeJS},
		{"Main.java", KindJava},
		{"program.rb", ""},
		{"README", ""},
	}

	for _, tt := range tests {
		if got := Detect(tt.filename); got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestRegistryCreate(t *testing.T) {
	r := NewRegistry()

	adapter, err := r.Create(Config{Kind: KindDelve, Request: "launch", Program: "./cmd/app"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if adapter.Kind() != KindDelve {
		t.Errorf("Kind() = %q, want %q", adapter.Kind(), KindDelve)
	}

	if _, err := r.Create(Config{Kind: "gdb"}); err == nil {
		t.Error("Create() with unknown kind should fail")
	}
}

func TestRegistryKinds(t *testing.T) {
	kinds := NewRegistry().Kinds()
	if len(kinds) != 4 {
		t.Fatalf("Kinds() returned %d kinds, want 4", len(kinds))
	}
	for i := 1; i < len(kinds); i++ {
		if kinds[i-1] >= kinds[i] {
			t.Errorf("Kinds() not sorted: %v", kinds)
		}
	}
}

func TestDelveValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"launch with program", Config{Request: "launch", Program: "./cmd/app"}, false},
		{"launch without program", Config{Request: "launch"}, true},
		{"attach with pid", Config{Request: "attach", ProcessID: 1234}, false},
		{"attach with port", Config{Request: "attach", Port: 38697}, false},
		{"attach with neither", Config{Request: "attach"}, true},
		{"bad request", Config{Request: "restart"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := NewDelve(tt.config)
			if err != nil {
				t.Fatalf("NewDelve() error = %v", err)
			}
			if err := adapter.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDelveLaunchArguments(t *testing.T) {
	adapter := NewDelveWithConfig(DelveConfig{
		Config: Config{
			Request:     "launch",
			Program:     "./cmd/app",
			Args:        []string{"-v"},
			StopOnEntry: true,
		},
		BuildFlags: "-tags=integration",
	})

	args, err := adapter.LaunchArguments()
	if err != nil {
		t.Fatalf("LaunchArguments() error = %v", err)
	}

	if args["mode"] != "debug" {
		t.Errorf("mode = %v, want debug", args["mode"])
	}
	if args["program"] != "./cmd/app" {
		t.Errorf("program = %v, want ./cmd/app", args["program"])
	}
	if args["stopOnEntry"] != true {
		t.Errorf("stopOnEntry = %v, want true", args["stopOnEntry"])
	}
	if args["buildFlags"] != "-tags=integration" {
		t.Errorf("buildFlags = %v, want -tags=integration", args["buildFlags"])
	}
	if args["stackTraceDepth"] != 50 {
		t.Errorf("stackTraceDepth = %v, want 50", args["stackTraceDepth"])
	}
}

func TestConnectionTypes(t *testing.T) {
	delveStdio, _ := NewDelve(Config{Request: "launch", Program: "./cmd/app"})
	if got := delveStdio.Connection(); got != "stdio" {
		t.Errorf("delve without port: Connection() = %q, want stdio", got)
	}

	delveSocket := NewDelveWithConfig(DelveConfig{Config: Config{Port: 38697}})
	if got := delveSocket.Connection(); got != "socket" {
		t.Errorf("delve with port: Connection() = %q, want socket", got)
	}
	if got := delveSocket.Address(); got != "127.0.0.1:38697" {
		t.Errorf("Address() = %q, want 127.0.0.1:38697", got)
	}

	java, _ := NewJava(Config{Port: 5005})
	if got := java.Connection(); got != "socket" {
		t.Errorf("java: Connection() = %q, want socket", got)
	}

	node, _ := NewNodeJS(Config{Port: 8123})
	if got := node.Connection(); got != "socket" {
		t.Errorf("nodejs: Connection() = %q, want socket", got)
	}
}

func TestJavaValidate(t *testing.T) {
	java := NewJavaWithConfig(JavaConfig{
		Config:    Config{Request: "launch", Port: 5005},
		MainClass: "com.example.Main",
	})
	if err := java.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	noPort := NewJavaWithConfig(JavaConfig{MainClass: "com.example.Main"})
	if err := noPort.Validate(); err == nil {
		t.Error("Validate() without port should fail")
	}
}

func TestPythonLaunchArguments(t *testing.T) {
	adapter, err := NewPython(Config{Request: "launch", Module: "pytest", Args: []string{"-v"}})
	if err != nil {
		t.Fatalf("NewPython() error = %v", err)
	}

	args, err := adapter.LaunchArguments()
	if err != nil {
		t.Fatalf("LaunchArguments() error = %v", err)
	}
	if args["module"] != "pytest" {
		t.Errorf("module = %v, want pytest", args["module"])
	}
	if args["justMyCode"] != true {
		t.Errorf("justMyCode = %v, want true", args["justMyCode"])
	}
	if _, ok := args["program"]; ok {
		t.Error("program should be omitted when empty")
	}
}
