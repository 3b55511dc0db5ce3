package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statement = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000
<LANGUAGE>POR
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>BRL
<CCACCTFROM>
<ACCTID>4111XXXXXXXX1111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101
<DTEND>20240131
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240105
<TRNAMT>-20.00
<FITID>cc-1
<NAME>UBER *TRIP
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240109
<TRNAMT>-22.00
<FITID>cc-2
<NAME>UBER *TRIP
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-42.00
<DTASOF>20240131
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>
`

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	dbPath := filepath.Join(dir, "data", "finance.db")
	ofxPath := filepath.Join(dir, "statement.ofx")
	require.NoError(t, os.WriteFile(ofxPath, []byte(statement), 0600))

	t.Run("version", func(t *testing.T) {
		out, err := executeCommand(t, "version")
		require.NoError(t, err)
		assert.Contains(t, out, "finance dev")
	})

	t.Run("normalize", func(t *testing.T) {
		out, err := executeCommand(t, "normalize", "--db", dbPath, "UBER *TRIP 123456")
		require.NoError(t, err)
		assert.Contains(t, out, "aggressive:")
		assert.Contains(t, out, "UBER")
	})

	t.Run("import twice is idempotent", func(t *testing.T) {
		out, err := executeCommand(t, "import", "--db", dbPath, ofxPath)
		require.NoError(t, err)
		assert.Contains(t, out, "Imported 2 new transactions")

		out, err = executeCommand(t, "import", "--db", dbPath, dir)
		require.NoError(t, err)
		assert.Contains(t, out, "Imported 0 new transactions (2 already present)")
	})

	t.Run("migrate status", func(t *testing.T) {
		out, err := executeCommand(t, "migrate", "--db", dbPath, "--status")
		require.NoError(t, err)
		assert.Contains(t, out, "Current version: 2")
	})

	t.Run("contexts", func(t *testing.T) {
		out, err := executeCommand(t, "contexts", "--db", dbPath)
		require.NoError(t, err)
		assert.Contains(t, out, "UBER")
		assert.Contains(t, out, "-42.00")
	})

	t.Run("list empty", func(t *testing.T) {
		out, err := executeCommand(t, "list", "--db", dbPath)
		require.NoError(t, err)
		assert.Contains(t, out, "No discoveries found")
	})

	t.Run("confirm unknown id", func(t *testing.T) {
		_, err := executeCommand(t, "confirm", "--db", dbPath, "missing")
		assert.Error(t, err)
	})
}

func TestStatementFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.ofx", "b.QFX", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.ofx"), 0750))

	files, err := statementFiles([]string{dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.ofx"), filepath.Join(dir, "b.QFX")}, files)

	_, err = statementFiles([]string{filepath.Join(dir, "missing.ofx")})
	assert.Error(t, err)
}
