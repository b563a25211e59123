package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"login", "logout", "conversations", "open", "send", "listen", "feed", "like", "follow", "unfollow", "post", "version"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}

func TestSendArgs(t *testing.T) {
	sendImage = ""
	assert.Error(t, sendCmd.Args(sendCmd, nil))
	assert.NoError(t, sendCmd.Args(sendCmd, []string{"hi"}))

	sendImage = "cat.png"
	defer func() { sendImage = "" }()
	assert.NoError(t, sendCmd.Args(sendCmd, nil))
}

func TestFlags(t *testing.T) {
	assert.NotNil(t, conversationsCmd.Flags().Lookup("refresh"))
	assert.NotNil(t, sendCmd.Flags().Lookup("image"))
	assert.NotNil(t, postCmd.Flags().Lookup("image"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "Social chat v"+Version+"\n", out.String())
}
