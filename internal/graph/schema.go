package graph

// Schema is the full API surface. Identity always comes from the
// bearer token, never from arguments, so no operation takes a caller
// parameter.
const Schema = `
schema {
	query: Query
	mutation: Mutation
}

type Query {
	getServers: [Server!]!
	getServer(id: Int!): Server!
	getProfileById(profileId: Int!): Profile!
}

type Mutation {
	createProfile(input: CreateProfileInput!): Profile!
	createServer(input: CreateServerInput!): Server!
	updateServer(input: UpdateServerInput!): Server!
	updateServerWithNewInviteCode(serverId: Int!): Server!
	createChannel(input: CreateChannelInput!): Server!
	leaveServer(serverId: Int!): String!
	deleteServer(serverId: Int!): String!
	deleteChannel(channelId: Int!): String!
	addMemberToServer(inviteCode: String!): Server!
	changeMemberRole(memberId: Int!, role: MemberRole!): Server!
	deleteMember(memberId: Int!): Server!
}

type Profile {
	id: Int!
	name: String!
	email: String!
	imageUrl: String!
}

type Server {
	id: Int!
	name: String!
	imageUrl: String!
	inviteCode: String!
	profileId: Int!
	members: [Member!]
	channels: [Channel!]
}

type Member {
	id: Int!
	serverId: Int!
	profileId: Int!
	role: MemberRole!
	profile: Profile
}

type Channel {
	id: Int!
	serverId: Int!
	profileId: Int!
	name: String!
	type: ChannelType!
}

enum MemberRole {
	ADMIN
	MODERATOR
	GUEST
}

enum ChannelType {
	TEXT
	AUDIO
	VIDEO
}

input CreateProfileInput {
	name: String!
	email: String!
	imageUrl: String
}

input CreateServerInput {
	name: String!
	profileId: Int!
	imageUrl: String
}

input UpdateServerInput {
	serverId: Int!
	name: String!
	imageUrl: String
}

input CreateChannelInput {
	serverId: Int!
	name: String!
	type: ChannelType!
}
`
