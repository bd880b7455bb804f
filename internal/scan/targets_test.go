package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandCIDRs(t *testing.T) {
	tests := []struct {
		name      string
		cidrs     []string
		wantHosts int
		wantErr   bool
	}{
		{"slash 29", []string{"10.0.0.0/29"}, 6, false},
		{"slash 22 floor accepted", []string{"10.0.0.0/22"}, 1022, false},
		{"slash 21 rejected", []string{"10.0.0.0/21"}, 0, true},
		{"slash 32 single host", []string{"10.0.0.5/32"}, 1, false},
		{"slash 31 pair", []string{"10.0.0.4/31"}, 2, false},
		{"malformed", []string{"10.0.0.0/99"}, 0, true},
		{"not a cidr", []string{"nope"}, 0, true},
		{"ipv6 rejected", []string{"2001:db8::/64"}, 0, true},
		{"empty", nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, err := ExpandCIDRs(tt.cidrs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, hosts, tt.wantHosts)
		})
	}
}

func TestExpandCIDRs_ExcludesNetworkAndBroadcast(t *testing.T) {
	hosts, err := ExpandCIDRs([]string{"10.0.0.0/29"})
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.6"}, hosts)
}

func TestExpandCIDRs_DeduplicatesAcrossInputs(t *testing.T) {
	hosts, err := ExpandCIDRs([]string{"10.0.0.0/30", "10.0.0.0/29"})
	require.NoError(t, err)
	assert.Len(t, hosts, 6)

	// Identical targets regardless of input order.
	reversed, err := ExpandCIDRs([]string{"10.0.0.0/29", "10.0.0.0/30"})
	require.NoError(t, err)
	assert.ElementsMatch(t, hosts, reversed)
}
