package client

import (
	"fmt"
	"strings"
)

// BootConfig are the inputs to the first-boot payload
type BootConfig struct {
	GatewayToken  string
	TelegramToken string
	UseOllama     bool
	Model         string
}

// RenderUserData renders the cloud-init script that installs Docker and
// starts the assistant runtime (plus an Ollama sidecar when local inference
// is requested). Pure function of its inputs.
func RenderUserData(cfg *BootConfig) string {
	model := cfg.Model
	if cfg.UseOllama {
		model = "ollama/llama3.2"
	}

	var env strings.Builder
	fmt.Fprintf(&env, "          - GATEWAY_TOKEN=%s\n", cfg.GatewayToken)
	if cfg.TelegramToken != "" {
		fmt.Fprintf(&env, "          - TELEGRAM_BOT_TOKEN=%s\n", cfg.TelegramToken)
	}
	if cfg.UseOllama {
		env.WriteString("          - OLLAMA_HOST=http://ollama:11434\n")
	}
	fmt.Fprintf(&env, "          - DEFAULT_MODEL=%s", model)

	var sidecar, dependsOn, volumes string
	if cfg.UseOllama {
		dependsOn = "\n        depends_on:\n          - ollama"
		sidecar = `
      ollama:
        image: ollama/ollama:latest
        container_name: ollama
        restart: always
        volumes:
          - ollama_data:/root/.ollama
        command: serve
`
		volumes = "\n    volumes:\n      ollama_data:"
	}

	script := fmt.Sprintf(`#cloud-config
package_update: true
package_upgrade: true

packages:
  - docker.io
  - docker-compose

runcmd:
  - systemctl enable docker
  - systemctl start docker
  - mkdir -p /opt/openclaw
  - |
    cat > /opt/openclaw/docker-compose.yml << 'EOF'
    version: '3.8'
    services:
      openclaw:
        image: openclaw/openclaw:latest
        container_name: openclaw
        restart: always
        ports:
          - "18792:18792"
        environment:
%s%s
%s%s
    EOF
  - cd /opt/openclaw && docker-compose pull
  - cd /opt/openclaw && docker-compose up -d
`, env.String(), dependsOn, sidecar, volumes)

	if cfg.UseOllama {
		script += "  - docker exec ollama ollama pull llama3.2:8b\n"
	}

	return script
}
