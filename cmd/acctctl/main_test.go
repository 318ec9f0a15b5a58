package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMessage = "From: Notifications <notify@ilab.example.com>\r\n" +
	"To: support@lab.org\r\n" +
	"Subject: Jane Doe is requesting an account\r\n" +
	"Message-ID: <abc123@ilab.example.com>\r\n" +
	"Date: Mon, 03 Jun 2024 10:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"name: Jane Doe\r\n" +
	"email: jane.doe@uni.edu\r\n"

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("AUTH_BCRYPT_COST", "4")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestIngestCommandReplaysMessages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "first.eml")
	require.NoError(t, os.WriteFile(path, []byte(sampleMessage), 0o600))

	out := runCLI(t, "ingest", path, path)
	assert.Contains(t, out, path+"\trequest_created\tACCT-0001")
	assert.Contains(t, out, path+"\tduplicate\tACCT-0001")
}

func TestImportCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(path, []byte("name: Sam Roe\nemail: SAM@uni.edu\n"), 0o600))

	out := runCLI(t, "import", "--subject", "Sam Roe is requesting an account", path)
	assert.Contains(t, out, "created ACCT-0001 for sam@uni.edu")
}

func TestStaffAddCommand(t *testing.T) {
	out := runCLI(t, "staff", "add", "nadia@lab.org", "Nadia", "Clark")
	assert.Contains(t, out, "created nadia@lab.org (user)")
}
