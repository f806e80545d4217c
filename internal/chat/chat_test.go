package chat

var _ Client = (*IRCClient)(nil)
var _ Client = (*FakeClient)(nil)
