package config

// Template returns the scaffold written by `bridge init`.
func Template() string {
	return `# bridge project configuration.
# Run ` + "`bridge hosts`" + ` to list the hosts defined below.

default_host = "dev"

[sync]
# Glob patterns excluded from sync. A pattern without '/' matches any path
# component; '**' crosses directories.
exclude = [".git", "target", "node_modules", "__pycache__"]

[hosts.dev]
hostname = "dev.example.com"      # ssh alias or address
path = "/home/me/projects/app"    # remote project directory
shell = "bash"                    # bash | powershell | cmd
sync_method = "tar"               # tar | rsync

# Template applied to every command; {} is replaced by the command.
# wrapper = "source ~/.profile && {}"

# Fail on unset ${VAR} references (use ${VAR:-default} for optional ones).
strict_env = true

# Extra env files loaded after .env; later files win.
# env_files = [".env.dev"]

# Run after the connection drops and the host comes back (e.g. after a reboot).
# reconnect_command = "./scripts/resume.sh"
reconnect_timeout = 90

# Serialise runs against this host: false, true or a lock name.
lock = false
lock_timeout = 600
`
}
