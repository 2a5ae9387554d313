package app

const ServiceName = "payroll-system"

// Set via -ldflags during build:
//
//	go build -ldflags="-X 'github.com/pablotheshekpeking/payroll-system/internal/app.Version=1.0.0'"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
