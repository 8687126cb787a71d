package cli

import (
	"strconv"

	"github.com/ssfcore/ssf/pkg/configuration/ssf"
	"github.com/ssfcore/ssf/pkg/registry"
)

// StartConfiguredServices starts the microservices a session always carries
// once its configuration enables them, rather than the ones started
// on-demand per `-L`/`-R`/`-U`/`-V`/`-D`/`-F` by pkg/adapter: the fiber-to-file
// and file-enquirer services, gated by ssf.services.fileCopy.enable (the
// file-to-fiber service is not started here), and the interactive shell
// server the `-X`/`-Y` adapters connect to, which is otherwise unreachable
// since it binds the fixed fiber.ProcessPort rather than one an adapter
// derives per invocation.
func StartConfiguredServices(services *registry.Manager, config *ssf.Configuration) {
	if config.Services.FileCopy.Enable {
		services.Start(registry.ServiceFiberToFile, nil)
		services.Start(registry.ServiceFileEnquirer, nil)
	}

	services.Start(registry.ServiceProcess, map[string]string{
		"path":     config.Services.Shell.Path,
		"args":     config.Services.Shell.Args,
		"cwd":      config.Services.Shell.Cwd,
		"env_file": config.Services.Shell.EnvFile,
		"cols":     strconv.Itoa(config.Services.Shell.Cols),
		"rows":     strconv.Itoa(config.Services.Shell.Rows),
	})
}
