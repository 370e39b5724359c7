package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dhruv457457/AutoPay/pkg/types"
)

const (
	ownerA      = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	ownerB      = "0x49A341568e5447719c66d135B24bECaCae3feCc5"
	subscriberA = "0x12D3392596FC8B235A3dc670F12d67250cF3D7A3"
	subscriberB = "0x786EAD89AF3DA620Fca3820288cF22adFf039C72"
)

func sub(id, owner, subscriber string) types.Subscription {
	return types.Subscription{
		ID:         id,
		Owner:      owner,
		Subscriber: subscriber,
		IsActive:   true,
	}
}

func TestGroupByOwnerMergesSameOwner(t *testing.T) {
	groups, rejected := GroupByOwner([]types.Subscription{
		sub("1", ownerA, subscriberA),
		sub("7", ownerA, subscriberA),
	})
	require.Empty(t, rejected)
	require.Len(t, groups, 1)
	require.Equal(t, types.NormalizeAddress(ownerA), groups[0].Owner)
	require.Equal(t, types.NormalizeAddress(subscriberA), groups[0].Subscriber)
	require.Len(t, groups[0].Subscriptions, 2)
}

func TestGroupByOwnerCaseInsensitive(t *testing.T) {
	groups, rejected := GroupByOwner([]types.Subscription{
		sub("1", ownerA, subscriberA),
		sub("2", types.NormalizeAddress(ownerA), subscriberA),
	})
	require.Empty(t, rejected)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Subscriptions, 2)
}

func TestGroupByOwnerDeterministicOrder(t *testing.T) {
	groups, rejected := GroupByOwner([]types.Subscription{
		sub("1", ownerA, subscriberA),
		sub("2", ownerB, subscriberB),
	})
	require.Empty(t, rejected)
	require.Len(t, groups, 2)
	// Sorted by normalized owner address.
	require.Less(t, groups[0].Owner, groups[1].Owner)
}

func TestGroupByOwnerRejectsMixedSubscribers(t *testing.T) {
	groups, rejected := GroupByOwner([]types.Subscription{
		sub("1", ownerA, subscriberA),
		sub("2", ownerA, subscriberB),
		sub("3", ownerB, subscriberB),
	})
	require.Len(t, rejected, 1)
	require.Equal(t, types.NormalizeAddress(ownerA), rejected[0].Owner)
	require.Len(t, rejected[0].Subscribers, 2)

	// The healthy group is unaffected by the rejected one.
	require.Len(t, groups, 1)
	require.Equal(t, types.NormalizeAddress(ownerB), groups[0].Owner)
}

func TestGroupByOwnerEmpty(t *testing.T) {
	groups, rejected := GroupByOwner(nil)
	require.Empty(t, groups)
	require.Empty(t, rejected)
}
