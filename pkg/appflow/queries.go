package appflow

// GraphQL documents sent to the Appflow API. The text is kept as-is so the
// server-side operation names and fragments stay stable.

const buildsListOperation = "BuildsList"

const buildsListQuery = `
query BuildsList($appId: String!, $first: Int, $last: Int, $after: String, $before: String, $state: JobState, $platform: Platform, $deployable: Boolean) {
    app(id: $appId) {
        builds(
            first: $first
            last: $last
            after: $after
            before: $before
            state: $state
            platform: $platform
            deployable: $deployable
        ) {
            totalCount
            pageInfo {
                startCursor
                endCursor
                hasNextPage
                hasPreviousPage
            }
            edges {
                cursor
                node {
                    __typename
                    ...BuildListFields
                    ...DeployBuildListFields
                    ...PackageBuildListFields
                }
            }
        }
    }
}

fragment BuildListFields on Build {
    __typename
    number
    jobId
    uuid
    app {
        id
    }
}

fragment DeployBuildListFields on DeployBuild {
    id
    jobId
    callerId
    uuid
    app {
        id
    }
}

fragment PackageBuildListFields on PackageBuild {
  id
  number
  uuid
  app {
    id
  }
}
    `

const getChannelsOperation = "GetChannels"

const getChannelsQuery = `
query GetChannels($appId: String!){
  app(id:$appId) {
    channels {
      edges {
        node {
          id
          name
          build {
            id
          }
        }
      }
    }
  }
} 
   `
